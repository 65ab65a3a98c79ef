// Package action implements the out-of-band command dispatcher (C7,
// spec.md §4.7): a per-kind todo list the cast controller checks between
// frames, applying each entry at most once before discarding it.
package action

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("action")

// Verb enumerates the recognized action verbs (spec.md §4.7's table).
type Verb string

const (
	VerbStop         Verb = "stop"
	VerbShot         Verb = "shot"
	VerbInfo         Verb = "info"
	VerbReset        Verb = "reset"
	VerbHost         Verb = "host"
	VerbMulticast    Verb = "multicast"
	VerbOpenPreview  Verb = "open-preview"
	VerbClosePreview Verb = "close-preview"
	VerbStopText     Verb = "stop-text"
)

// Action is one parsed todo entry: `name||verb||params||ts`.
type Action struct {
	CastName string
	Verb     Verb
	Params   string
	Ts       time.Time
}

// Parse decodes the wire format `name||verb||params||ts` (ts as Unix
// seconds). Unknown verbs are still returned — the caller logs and
// discards them, per spec.md §4.7 ("unknown verbs are logged and
// discarded"), rather than failing to parse the whole entry.
func Parse(entry string) (Action, error) {
	parts := strings.SplitN(entry, "||", 4)
	if len(parts) != 4 {
		return Action{}, fmt.Errorf("action: malformed entry %q", entry)
	}
	unixTs, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Action{}, fmt.Errorf("action: bad timestamp in %q: %w", entry, err)
	}
	return Action{
		CastName: parts[0],
		Verb:     Verb(parts[1]),
		Params:   parts[2],
		Ts:       time.Unix(unixTs, 0),
	}, nil
}

var knownVerbs = map[Verb]bool{
	VerbStop: true, VerbShot: true, VerbInfo: true, VerbReset: true,
	VerbHost: true, VerbMulticast: true, VerbOpenPreview: true,
	VerbClosePreview: true, VerbStopText: true,
}

// Registry holds the todo list shared across every cast of one kind
// (spec.md §5: "cast_name_todo ... mutated only under a per-kind mutex").
type Registry struct {
	mu   sync.Mutex
	todo []Action
}

// NewRegistry returns an empty todo list.
func NewRegistry() *Registry {
	return &Registry{}
}

// Enqueue appends a raw entry, parsing and validating it first. A
// malformed entry is logged and dropped rather than queued.
func (r *Registry) Enqueue(entry string) {
	a, err := Parse(entry)
	if err != nil {
		log.Warn("dropping malformed action entry", logging.KeyError, err)
		return
	}
	if !knownVerbs[a.Verb] {
		log.Warn("dropping unknown action verb", "verb", a.Verb, "cast", a.CastName)
		return
	}
	r.mu.Lock()
	r.todo = append(r.todo, a)
	r.mu.Unlock()
}

// Take removes and returns every Action addressed to castName, GC'ing
// entries for any other name that the caller reports no longer exists
// (spec.md §4.7: "entries targeting a non-existent cast name are GC'd on
// sight"). liveNames should return true for any cast name still running.
func (r *Registry) Take(castName string, liveNames func(string) bool) []Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	var mine []Action
	var keep []Action
	for _, a := range r.todo {
		switch {
		case a.CastName == castName:
			mine = append(mine, a)
		case liveNames(a.CastName):
			keep = append(keep, a)
		default:
			log.Debug("garbage collecting action for dead cast", "cast", a.CastName, "verb", a.Verb)
		}
	}
	r.todo = keep
	return mine
}
