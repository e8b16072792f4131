package protocol

// EventType names a protocol notification.
type EventType string

const (
	EventGameStarted    EventType = "gameStarted"
	EventPlayerJoined   EventType = "playerJoined"
	EventMoveSubmitted  EventType = "moveSubmitted"
	EventMoveInvalid    EventType = "moveInvalid"
	EventMoveMade       EventType = "moveMade"
	EventMovesProcessed EventType = "movesProcessed"
	EventCollision      EventType = "collision"
	EventGameUpdated    EventType = "gameUpdated"
	EventBoardRevealed  EventType = "boardRevealed"
	EventGameCancelled  EventType = "gameCancelled"
	EventGameTimeout    EventType = "gameTimeout"
)

// Event is a protocol notification with a type and key/value attributes.
type Event struct {
	Type       EventType         `json:"type"`
	GameID     string            `json:"game_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Emitter receives protocol events. The ledger wires its subscription bus in
// here; a nil emitter drops events.
type Emitter func(Event)

func (e Emitter) emit(t EventType, gameID string, attrs map[string]string) {
	if e == nil {
		return
	}
	e(Event{Type: t, GameID: gameID, Attributes: attrs})
}
