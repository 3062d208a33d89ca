package model

// PlayerAction - одно поданное действие игрока за раунд.
// Не персистится как отдельная сущность: после обработки растворяется в нарративе.
type PlayerAction struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Content       string `json:"content"`
	CharacterID   string `json:"character_id,omitempty"`
	CharacterName string `json:"character_name,omitempty"`
}

// RoomMember - запись ростера комнаты. Используется MechanicsAgent для
// разрешения ссылок на персонажей по id или имени.
type RoomMember struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	CharacterID   string `json:"character_id,omitempty"`
	CharacterName string `json:"character_name,omitempty"`
}
