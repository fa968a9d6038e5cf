package gateway

// Question is a forum question as the backend returns it.
type Question struct {
	ID          int    `json:"id"`
	UserID      int    `json:"user_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Votes       int    `json:"votes"`
	ViewCount   int    `json:"view_count"`
	AnswerCount int    `json:"answer_count"`
	IsSolved    bool   `json:"is_solved"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatar_url"`
}

// Tag is a forum tag.
type Tag struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UsageCount  int    `json:"usageCount"`
	CreatedAt   string `json:"createdAt"`
}

// UserInfo is the backend's user record. Password is an opaque hash and is
// never interpreted client-side.
type UserInfo struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone"`
	Reputation int    `json:"reputation"`
	Role       string `json:"role"`
	Wallet     string `json:"wallet"`
	CreatedAt  string `json:"created_at"`
	LastSeen   string `json:"last_seen"`
	IsActive   bool   `json:"is_active"`
	AvatarURL  string `json:"avatar_url"`
}

// CharacterData holds per-character progression details.
type CharacterData struct {
	Level    int    `json:"level"`
	ImageURL string `json:"imageUrl"`
}

// Character is one game character attached to a user.
type Character struct {
	Name string        `json:"name"`
	Data CharacterData `json:"data"`
}

// Session is the payload returned by login, register, and check-auth.
type Session struct {
	User       UserInfo    `json:"user"`
	Characters []Character `json:"characters"`
}

// WalletStatus is the response of the wallet registration check.
type WalletStatus struct {
	Exists bool `json:"exists"`
}
