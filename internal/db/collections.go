package db

// Collection names the four record collections held by the store. The
// reactive layer keys its dependency sets on these values.
type Collection string

const (
	CollectionSaveStates   Collection = "save_states"
	CollectionFavorites    Collection = "favorites"
	CollectionPlaySessions Collection = "play_sessions"
	CollectionSettings     Collection = "settings"
)

// Collections lists every collection in schema order.
func Collections() []Collection {
	return []Collection{
		CollectionSaveStates,
		CollectionFavorites,
		CollectionPlaySessions,
		CollectionSettings,
	}
}

// Notifier receives a change event after a repository mutation commits.
// Implementations must not call back into the repository synchronously from
// CollectionChanged; schedule work instead.
type Notifier interface {
	CollectionChanged(col Collection)
}
