package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// stateDocument is the JSON document the host platform's bots publish
// their account state to. One document covers every bot.
type stateDocument struct {
	UpdatedAt time.Time               `json:"updated_at"`
	Bots      map[string]botStateJSON `json:"bots"`
}

type botStateJSON struct {
	AccountEquity float64        `json:"account_equity"`
	AsOf          time.Time      `json:"as_of"`
	Positions     []positionJSON `json:"positions"`
}

type positionJSON struct {
	PositionID   string   `json:"position_id"`
	Symbol       string   `json:"symbol"`
	Side         string   `json:"side"`
	Quantity     float64  `json:"quantity"`
	EntryPrice   float64  `json:"entry_price"`
	CurrentPrice float64  `json:"current_price"`
	Leverage     *float64 `json:"leverage,omitempty"`
	FundingRate  *float64 `json:"funding_rate,omitempty"`
}

// FileProvider reads bot state from a JSON document on every call, so a
// state file rewritten by the platform is picked up without restarts.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider reading from the given state file.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Path returns the state document path.
func (p *FileProvider) Path() string {
	return p.path
}

// BotState reads the state document and extracts one bot's snapshot.
// A readable document that lacks the bot yields ErrStateUnavailable.
func (p *FileProvider) BotState(ctx context.Context, botName string) (*models.BotState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := p.read()
	if err != nil {
		return nil, apperrors.NewProviderError(botName, "read_state", err)
	}

	raw, ok := doc.Bots[botName]
	if !ok {
		return nil, apperrors.NewProviderError(botName, "read_state", apperrors.ErrStateUnavailable)
	}

	state, err := raw.toModel(botName, doc.UpdatedAt)
	if err != nil {
		return nil, apperrors.NewProviderError(botName, "decode_state", err)
	}
	return state, nil
}

// Bots lists the bot names present in the state document, sorted.
// An unreadable document reads as empty.
func (p *FileProvider) Bots() []string {
	doc, err := p.read()
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(doc.Bots))
	for name := range doc.Bots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *FileProvider) read() (*stateDocument, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("reading state document: %w", err)
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing state document: %w", err)
	}
	return &doc, nil
}

// toModel converts the wire form into the domain snapshot. Signed
// quantities are tolerated: a negative quantity flips the side.
func (b botStateJSON) toModel(botName string, docUpdated time.Time) (*models.BotState, error) {
	asOf := b.AsOf
	if asOf.IsZero() {
		asOf = docUpdated
	}

	positions := make([]models.Position, 0, len(b.Positions))
	for i, raw := range b.Positions {
		side := models.Side(raw.Side)
		if !side.Valid() {
			return nil, apperrors.Wrapf(apperrors.ErrUnknownSide, "position %d (%s)", i, raw.Symbol)
		}
		qty := raw.Quantity
		if qty < 0 {
			qty = -qty
			if side == models.SideLong {
				side = models.SideShort
			} else {
				side = models.SideLong
			}
		}
		positions = append(positions, models.Position{
			PositionID:   raw.PositionID,
			Symbol:       raw.Symbol,
			Side:         side,
			Quantity:     qty,
			EntryPrice:   raw.EntryPrice,
			CurrentPrice: raw.CurrentPrice,
			Leverage:     raw.Leverage,
			FundingRate:  raw.FundingRate,
		})
	}

	return &models.BotState{
		BotName:       botName,
		AccountEquity: b.AccountEquity,
		Positions:     positions,
		AsOf:          asOf,
	}, nil
}

var _ StateProvider = (*FileProvider)(nil)
