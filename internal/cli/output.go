package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/mcoot/playerhub/internal/api/response"
	"github.com/mcoot/playerhub/internal/client/consolidation"
	"github.com/mcoot/playerhub/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case StatusView:
		o.printStatus(v)
	case SignInView:
		o.printSignIn(v)
	case response.Profile:
		o.printProfile(v)
	case response.Economy:
		o.printEconomy(v)
	case EconomyEventView:
		o.printEconomyEvent(v)
	case response.EconomyConfig:
		o.printEconomyConfig(v)
	case response.Health:
		o.printHealth(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// StatusView is the authentication state
type StatusView struct {
	State           string   `json:"state"`
	Provider        string   `json:"provider,omitempty"`
	PlayerID        string   `json:"player_id,omitempty"`
	LinkedProviders []string `json:"linked_providers"`
	HasPrimaryID    bool     `json:"has_primary_id"`
}

// SignInView is the result of a sign-in command
type SignInView struct {
	Outcome     string            `json:"outcome,omitempty"`
	Status      StatusView        `json:"status"`
	Profile     *response.Profile `json:"profile,omitempty"`
	Economy     *response.Economy `json:"economy,omitempty"`
	IsNewPlayer bool              `json:"is_new_player"`
}

// EconomyEventView is one pushed economy update
type EconomyEventView struct {
	Time    time.Time        `json:"time"`
	Reason  string           `json:"reason"`
	Economy response.Economy `json:"economy"`
}

func statusView(s consolidation.Status) StatusView {
	providers := make([]string, len(s.Identity.LinkedProviders))
	for i, k := range s.Identity.LinkedProviders {
		providers[i] = string(k)
	}
	return StatusView{
		State:           s.State.String(),
		Provider:        string(s.Provider),
		PlayerID:        string(s.Identity.PlayerID),
		LinkedProviders: providers,
		HasPrimaryID:    s.Identity.HasPrimaryID,
	}
}

func economyView(s model.EconomySnapshot) *response.Economy {
	e := response.EconomyFromModel(s)
	return &e
}

func (o *Output) printStatus(s StatusView) {
	_, _ = fmt.Fprintf(o.w, "State: %s\n", s.State)
	if s.PlayerID == "" {
		return
	}
	_, _ = fmt.Fprintf(o.w, "Player: %s\n", s.PlayerID)
	if s.Provider != "" {
		_, _ = fmt.Fprintf(o.w, "Signed in with: %s\n", s.Provider)
	}
	linked := "none"
	if len(s.LinkedProviders) > 0 {
		linked = strings.Join(s.LinkedProviders, ", ")
	}
	_, _ = fmt.Fprintf(o.w, "Linked providers: %s\n", linked)
}

func (o *Output) printSignIn(v SignInView) {
	if v.Outcome != "" {
		_, _ = fmt.Fprintf(o.w, "Outcome: %s\n", v.Outcome)
	}
	o.printStatus(v.Status)
	if v.Profile != nil {
		if v.IsNewPlayer {
			_, _ = fmt.Fprintln(o.w, "Welcome, new player!")
		}
		o.printProfile(*v.Profile)
	}
	if v.Economy != nil {
		o.printEconomy(*v.Economy)
	}
}

func (o *Output) printProfile(p response.Profile) {
	_, _ = fmt.Fprintf(o.w, "Name: %s\n", p.DisplayName)
	_, _ = fmt.Fprintf(o.w, "Experience: %d\n", p.Experience)
}

func (o *Output) printAmounts(title string, amounts map[string]int64) {
	_, _ = fmt.Fprintf(o.w, "%s:\n", title)
	if len(amounts) == 0 {
		_, _ = fmt.Fprintln(o.w, "  (none)")
		return
	}
	for _, key := range slices.Sorted(maps.Keys(amounts)) {
		_, _ = fmt.Fprintf(o.w, "  %s: %d\n", key, amounts[key])
	}
}

func (o *Output) printEconomy(e response.Economy) {
	o.printAmounts("Currencies", e.Currencies)
	o.printAmounts("Inventory", e.Inventory)
}

func (o *Output) printEconomyEvent(e EconomyEventView) {
	_, _ = fmt.Fprintf(o.w, "[%s] %s\n", e.Time.Format("2006-01-02 15:04:05"), e.Reason)
	o.printEconomy(e.Economy)
}

func (o *Output) printEconomyConfig(c response.EconomyConfig) {
	_, _ = fmt.Fprintln(o.w, "Currencies:")
	for _, cur := range c.Config.Currencies {
		_, _ = fmt.Fprintf(o.w, "  %s (starting balance %d)\n", cur.ID, cur.Initial)
	}
	_, _ = fmt.Fprintln(o.w, "Purchases:")
	for _, p := range c.Config.Purchases {
		costs := make([]string, len(p.Costs))
		for i, cost := range p.Costs {
			costs[i] = fmt.Sprintf("%d %s", cost.Amount, cost.CurrencyKey)
		}
		_, _ = fmt.Fprintf(o.w, "  %s: %s -> %d %s\n", p.ID, strings.Join(costs, " + "), p.Reward.Quantity, p.Reward.ItemID)
	}
}

func (o *Output) printHealth(h response.Health) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	if h.Storage != "" {
		_, _ = fmt.Fprintf(o.w, "Storage: %s\n", h.Storage)
	}
}
