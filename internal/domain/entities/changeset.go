package entities

// ChangeKind tells an initial snapshot apart from a delta
type ChangeKind string

const (
	ChangeInitial ChangeKind = "initial"
	ChangeUpdate  ChangeKind = "update"
	ChangeError   ChangeKind = "error"
)

// ChangeSet is one event of an enabled-tokens feed. Deletions index the previous snapshot,
// insertions and modifications index Tokens.
type ChangeSet struct {
	Kind          ChangeKind `json:"kind"`
	Tokens        []*Token   `json:"tokens,omitempty"`
	Deletions     []int      `json:"deletions,omitempty"`
	Insertions    []int      `json:"insertions,omitempty"`
	Modifications []int      `json:"modifications,omitempty"`
	Err           error      `json:"-"`
}

// TokenEvent is one event of a single-token feed. A non-nil Err is terminal.
type TokenEvent struct {
	Token *Token `json:"token,omitempty"`
	Err   error  `json:"-"`
}

// CommitEvent describes what a committed transaction changed. Upserted holds after-images.
type CommitEvent struct {
	Seq      uint64
	Upserted []*Token
	Deleted  []Key
}

// Touches reports whether the event changed anything on one of the chains
func (e *CommitEvent) Touches(chainIDs map[int64]struct{}) bool {
	for _, t := range e.Upserted {
		if _, ok := chainIDs[t.ChainID]; ok {
			return true
		}
	}
	for _, k := range e.Deleted {
		if _, ok := chainIDs[k.ChainID]; ok {
			return true
		}
	}
	return false
}
