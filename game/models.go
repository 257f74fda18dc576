package game

import (
	"database/sql"
	"sort"
	"time"

	"stuffhappens/store"
)

const (
	BaseHandSize  = 3
	StartingLives = 3
	// TargetCorrect is the full hand size that wins a regular game:
	// the 3 base cards plus 3 correctly placed rounds.
	TargetCorrect = 6
	// DemoRounds is how many rounds a demo game lasts.
	DemoRounds = 1
)

// Outcome is the tri-state result of a guess: a round that has not been
// answered yet is Unresolved, not false.
type Outcome int

const (
	OutcomeUnresolved Outcome = iota
	OutcomeCorrect
	OutcomeIncorrect
)

// MarshalJSON keeps the wire shape the client expects: null / true / false.
func (o Outcome) MarshalJSON() ([]byte, error) {
	switch o {
	case OutcomeCorrect:
		return []byte("true"), nil
	case OutcomeIncorrect:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

type Card struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ImagePath   string  `json:"imageFilename"`
	MiseryIndex float64 `json:"miseryIndex"`
}

// PublicCard is the projection sent to the client before an answer is
// verified. It must never carry the misery index.
type PublicCard struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ImagePath string `json:"imageFilename"`
}

func (c *Card) Public() *PublicCard {
	return &PublicCard{ID: c.ID, Name: c.Name, ImagePath: c.ImagePath}
}

// Record is one card's participation in a game.
type Record struct {
	ID          int64
	GameID      int64
	Round       int
	Card        *Card
	WasGuessed  Outcome
	TimedOut    *bool
	RequestedAt *time.Time
	RespondedAt *time.Time
}

// Game is the aggregate reconstructed from the store on every request.
// OwnerID is 0 for demo games, which have no owner.
type Game struct {
	ID             int64
	OwnerID        int64
	CreatedAt      time.Time
	RoundNum       int
	IsEnded        bool
	IsDemo         bool
	LivesRemaining int
	Records        []*Record
}

func (g *Game) RecordForRound(round int) *Record {
	for _, r := range g.Records {
		if r.Round == round {
			return r
		}
	}
	return nil
}

func (g *Game) UsedCardIDs() map[int64]bool {
	used := make(map[int64]bool, len(g.Records))
	for _, r := range g.Records {
		if r.Card != nil {
			used[r.Card.ID] = true
		}
	}
	return used
}

func (g *Game) CorrectCount() int {
	count := 0
	for _, r := range g.Records {
		if r.WasGuessed == OutcomeCorrect {
			count++
		}
	}
	return count
}

// ReferenceOrder returns the card ids the player must reproduce for the
// current round: every correctly guessed card from earlier rounds plus the
// current round's card, ascending by misery index. The catalog keeps misery
// indices unique; should a tie slip in anyway, card id breaks it
// deterministically.
func (g *Game) ReferenceOrder() []int64 {
	var eligible []*Card
	for _, r := range g.Records {
		if r.Card == nil {
			continue
		}
		if (r.Round < g.RoundNum && r.WasGuessed == OutcomeCorrect) || r.Round == g.RoundNum {
			eligible = append(eligible, r.Card)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].MiseryIndex != eligible[j].MiseryIndex {
			return eligible[i].MiseryIndex < eligible[j].MiseryIndex
		}
		return eligible[i].ID < eligible[j].ID
	})

	ids := make([]int64, len(eligible))
	for i, c := range eligible {
		ids[i] = c.ID
	}
	return ids
}

// GameJSON is the game's client representation.
type GameJSON struct {
	ID             int64         `json:"id"`
	CreatedAt      time.Time     `json:"createdAt"`
	RoundNum       int           `json:"roundNum"`
	IsEnded        bool          `json:"isEnded"`
	IsDemo         bool          `json:"isDemo"`
	LivesRemaining int           `json:"livesRemaining"`
	Records        []*RecordJSON `json:"records"`
}

type RecordJSON struct {
	Card       *Card   `json:"card"`
	Round      int     `json:"round"`
	WasGuessed Outcome `json:"wasGuessed"`
}

func (g *Game) JSON(includeRecords bool) *GameJSON {
	out := &GameJSON{
		ID:             g.ID,
		CreatedAt:      g.CreatedAt,
		RoundNum:       g.RoundNum,
		IsEnded:        g.IsEnded,
		IsDemo:         g.IsDemo,
		LivesRemaining: g.LivesRemaining,
		Records:        []*RecordJSON{},
	}
	if includeRecords {
		for _, r := range g.Records {
			out.Records = append(out.Records, &RecordJSON{
				Card:       r.Card,
				Round:      r.Round,
				WasGuessed: r.WasGuessed,
			})
		}
	}
	return out
}

// BeginRoundResult pairs the advanced game (without records) with the drawn
// card's public projection.
type BeginRoundResult struct {
	Game     *GameJSON   `json:"game"`
	NextCard *PublicCard `json:"nextCard"`
}

// VerifyResult reports a resolved round. GameRecord.Card carries the full
// card, misery index included, only when the guess was correct.
type VerifyResult struct {
	GameRecord *RecordJSON `json:"gameRecord"`
	IsEnded    bool        `json:"isEnded"`
	LivesRemaining int     `json:"livesRemaining"`
}

func cardFromRow(row *store.Card) *Card {
	if row == nil {
		return nil
	}
	return &Card{ID: row.ID, Name: row.Name, ImagePath: row.ImagePath, MiseryIndex: row.MiseryIndex}
}

func outcomeFromNullBool(b sql.NullBool) Outcome {
	switch {
	case !b.Valid:
		return OutcomeUnresolved
	case b.Bool:
		return OutcomeCorrect
	default:
		return OutcomeIncorrect
	}
}

func recordFromRow(row *store.GameRecord) *Record {
	record := &Record{
		ID:          row.ID,
		GameID:      row.GameID,
		Round:       row.Round,
		Card:        cardFromRow(row.Card),
		WasGuessed:  outcomeFromNullBool(row.WasGuessed),
		RequestedAt: row.RequestedAt,
		RespondedAt: row.RespondedAt,
	}
	if row.TimedOut.Valid {
		timedOut := row.TimedOut.Bool
		record.TimedOut = &timedOut
	}
	return record
}

func gameFromRow(row *store.Game, recordRows []*store.GameRecord) *Game {
	game := &Game{
		ID:             row.ID,
		CreatedAt:      row.CreatedAt,
		RoundNum:       row.RoundNum,
		IsEnded:        row.IsEnded,
		IsDemo:         row.IsDemo,
		LivesRemaining: row.LivesRemaining,
	}
	if row.OwnerID.Valid {
		game.OwnerID = row.OwnerID.Int64
	}
	for _, r := range recordRows {
		game.Records = append(game.Records, recordFromRow(r))
	}
	return game
}
