package labeling

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/triagemap/pkg/model"
)

// envelope is the serialized form of a stage session: the ledger plus the
// live state, so a reopened session resumes with full undo history intact.
type envelope struct {
	Version int                       `json:"version"`
	Stage   model.Stage               `json:"stage"`
	ItemIDs []int                     `json:"item_ids"`
	Live    map[int]model.LabelRecord `json:"live"`
	Cursor  int                       `json:"cursor"`
	NextSeq int                       `json:"next_seq"`
	Commits []Commit                  `json:"commits"`
}

const envelopeVersion = 1

// Marshal serializes the ledger and its live state.
func Marshal(h *History) ([]byte, error) {
	env := envelope{
		Version: envelopeVersion,
		Stage:   h.state.Stage(),
		ItemIDs: h.state.ItemIDs(),
		Live:    h.state.Records(),
		Cursor:  h.cursor,
		NextSeq: h.nextSeq,
		Commits: h.Commits(),
	}
	return json.Marshal(env)
}

// Unmarshal reconstructs a ledger and live state from serialized form.
func Unmarshal(data []byte) (*History, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported session version %d", env.Version)
	}
	if !env.Stage.Valid() {
		return nil, fmt.Errorf("session has unknown stage %q", env.Stage)
	}
	if len(env.Commits) == 0 {
		return nil, fmt.Errorf("session has no commits")
	}
	if env.Cursor < 0 || env.Cursor >= len(env.Commits) {
		return nil, fmt.Errorf("session cursor %d out of range (commits %d)", env.Cursor, len(env.Commits))
	}

	state := NewState(env.Stage, env.ItemIDs)
	state.replace(env.Live)

	h := &History{
		state:   state,
		cursor:  env.Cursor,
		nextSeq: env.NextSeq,
		clock:   defaultClock,
	}
	h.commits = make([]Commit, len(env.Commits))
	for i, c := range env.Commits {
		h.commits[i] = c.clone()
	}
	return h, nil
}
