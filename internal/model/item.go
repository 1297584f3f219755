package model

import "time"

type ItemID string

type CreateItemParams struct {
	Todo string `json:"todo" validate:"required"`
	User UserID `json:"user" validate:"required"`
}

// ItemPatch carries the item fields a caller may change. Nil fields are left
// untouched.
type ItemPatch struct {
	Todo *string `json:"todo,omitempty"`
	Done *bool   `json:"done,omitempty"`
}

func (p *ItemPatch) IsEmpty() bool {
	return p.Todo == nil && p.Done == nil
}

type Item struct {
	ID      ItemID `db:"Id" dynamodbav:"Id" redis:"Id" json:"Id"`
	Todo    string `db:"Todo" dynamodbav:"Todo" redis:"Todo" json:"Todo"`
	User    UserID `db:"User" dynamodbav:"User" redis:"User" json:"User"`
	Done    bool   `db:"Done" dynamodbav:"Done" redis:"Done" json:"Done"`
	Created int64  `db:"Created" dynamodbav:"Created" redis:"Created" json:"Created"` // unix millis
}

var ItemFields = []string{"Id", "Created", "Done", "Todo", "User"}

func (i *Item) CreatedAt() time.Time {
	return time.UnixMilli(i.Created).UTC()
}
