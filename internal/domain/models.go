package domain

import "time"

// Category - категория поста из фиксированного набора.
type Category string

const (
	CategoryGeneral      Category = "general"
	CategoryAnnouncement Category = "announcement"
	CategoryProject      Category = "project"
	CategoryBounty       Category = "bounty"
	CategoryMeeting      Category = "meeting"
	CategoryDocument     Category = "document"
)

// DefaultCategory - категория по умолчанию для новых постов.
const DefaultCategory = CategoryGeneral

// ValidCategory проверяет, входит ли категория в фиксированный набор.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryGeneral, CategoryAnnouncement, CategoryProject,
		CategoryBounty, CategoryMeeting, CategoryDocument:
		return true
	}
	return false
}

// Post представляет пост в обсуждении: корневой пост треда или ответ.
// ParentID == nil означает корневой пост (RootPostID == nil, ThreadDepth == 0).
type Post struct {
	ID         string   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AuthorID   string   `json:"authorId" gorm:"type:varchar(255);not null;index"`
	Title      string   `json:"title" gorm:"type:varchar(255)"`
	Content    string   `json:"content" gorm:"type:text;not null"`
	Category   Category `json:"category" gorm:"type:varchar(32);not null;default:'general';index"`
	ProjectID  *string  `json:"projectId,omitempty" gorm:"type:varchar(255);index"`
	ParentID   *string  `json:"parentId,omitempty" gorm:"type:uuid;index"`
	RootPostID *string  `json:"rootPostId,omitempty" gorm:"type:uuid;index"`

	// ThreadDepth предвычисляется при создании: 0 для корня, parent+1 для ответа.
	ThreadDepth int `json:"threadDepth" gorm:"not null;default:0"`

	// Флаги имеют смысл только на корневых постах.
	IsPinned bool `json:"isPinned" gorm:"not null;default:false"`
	IsLocked bool `json:"isLocked" gorm:"not null;default:false"`

	LastActivityAt time.Time `json:"lastActivityAt" gorm:"not null;default:now();index"`
	CreatedAt      time.Time `json:"createdAt" gorm:"not null;default:now()"`
	UpdatedAt      time.Time `json:"updatedAt" gorm:"not null;default:now()"`

	// Агрегаты, заполняемые запросами списков/треда. В таблице не хранятся.
	VoteScore  int `json:"voteScore" gorm:"->;-:migration"`
	ViewerVote int `json:"viewerVote" gorm:"->;-:migration"`
	ReplyCount int `json:"replyCount" gorm:"->;-:migration"`

	Votes []*Vote `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"` // gorm only
}

// IsRoot сообщает, является ли пост вершиной треда.
func (p *Post) IsRoot() bool {
	return p.ParentID == nil
}

// Vote - голос пользователя за пост. Составной первичный ключ
// (post_id, voter_id) гарантирует не более одной строки на пару.
type Vote struct {
	PostID    string    `json:"postId" gorm:"type:uuid;primaryKey"`
	VoterID   string    `json:"voterId" gorm:"type:varchar(255);primaryKey"`
	VoteType  int       `json:"voteType" gorm:"not null"` // +1 или -1
	CreatedAt time.Time `json:"createdAt" gorm:"not null;default:now()"`
}

// VoteOutcome - исход операции голосования.
type VoteOutcome string

const (
	VoteCreated VoteOutcome = "created" // строки не было, голос записан
	VoteUpdated VoteOutcome = "updated" // значение перезаписано
	VoteRemoved VoteOutcome = "removed" // повтор того же значения снял голос
)

// VoteResult - результат castVote: исход и итоговое значение голоса
// (0, если голос снят).
type VoteResult struct {
	Outcome VoteOutcome `json:"outcome"`
	Value   int         `json:"value"`
}

// ThreadNode - узел восстановленного дерева ответов.
type ThreadNode struct {
	Post    *Post         `json:"post"`
	Replies []*ThreadNode `json:"replies,omitempty"`
}
