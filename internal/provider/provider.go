// Package provider supplies bot account state to the margin monitor.
package provider

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// StateProvider defines the interface for fetching bot account state.
type StateProvider interface {
	// BotState returns the current account snapshot for a bot.
	BotState(ctx context.Context, botName string) (*models.BotState, error)
	// Bots lists the bot names the provider currently knows about.
	Bots() []string
}

// StaticProvider serves states from memory. Used by tests, demos and the
// CLI simulate commands.
type StaticProvider struct {
	mu     sync.RWMutex
	states map[string]*models.BotState
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{states: make(map[string]*models.BotState)}
}

// SetState registers or replaces the state for a bot, keyed by BotName.
func (p *StaticProvider) SetState(state *models.BotState) {
	if state == nil || state.BotName == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[state.BotName] = state
}

// RemoveState drops a bot from the provider.
func (p *StaticProvider) RemoveState(botName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.states, botName)
}

// BotState returns a copy of the registered state so callers cannot
// mutate the provider's view.
func (p *StaticProvider) BotState(ctx context.Context, botName string) (*models.BotState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	state, ok := p.states[botName]
	if !ok {
		return nil, apperrors.NewProviderError(botName, "bot_state", apperrors.ErrBotNotFound)
	}

	out := *state
	out.Positions = make([]models.Position, len(state.Positions))
	copy(out.Positions, state.Positions)
	return &out, nil
}

// Bots returns the registered bot names in sorted order.
func (p *StaticProvider) Bots() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.states))
	for name := range p.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ StateProvider = (*StaticProvider)(nil)
