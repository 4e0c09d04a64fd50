package notionModel

import "time"

// Page is the create/update payload for a Notion database page. Parent is
// only set on create.
type Page struct {
	Parent     *Parent             `json:"parent,omitempty"`
	Icon       *Icon               `json:"icon,omitempty"`
	Properties map[string]Property `json:"properties"`
}

type Parent struct {
	DatabaseID string `json:"database_id"`
}

type Icon struct {
	Type     string    `json:"type"`
	External *External `json:"external,omitempty"`
}

type External struct {
	Url string `json:"url"`
}

// Property carries exactly one of the typed payloads; the zero fields are
// dropped from the JSON so the same struct serves every column type.
type Property struct {
	Title    []RichText `json:"title,omitempty"`
	RichText []RichText `json:"rich_text,omitempty"`
	Number   *float64   `json:"number,omitempty"`
	Date     *Date      `json:"date,omitempty"`
	Select   *Select    `json:"select,omitempty"`
	Relation []Relation `json:"relation,omitempty"`
	Checkbox *bool      `json:"checkbox,omitempty"`
}

type RichText struct {
	Text Text `json:"text"`
}

type Text struct {
	Content string `json:"content"`
}

type Date struct {
	Start string `json:"start"`
}

type Select struct {
	Name string `json:"name"`
}

type Relation struct {
	ID string `json:"id"`
}

func TitleProp(content string) Property {
	return Property{Title: []RichText{{Text: Text{Content: content}}}}
}

func TextProp(content string) Property {
	return Property{RichText: []RichText{{Text: Text{Content: content}}}}
}

func NumberProp(n float64) Property {
	return Property{Number: &n}
}

func DateProp(t time.Time) Property {
	return Property{Date: &Date{Start: t.Format("2006-01-02")}}
}

func SelectProp(name string) Property {
	return Property{Select: &Select{Name: name}}
}

func RelationProp(pageIDs ...string) Property {
	relations := make([]Relation, 0, len(pageIDs))
	for _, id := range pageIDs {
		relations = append(relations, Relation{ID: id})
	}
	return Property{Relation: relations}
}

func CheckboxProp(checked bool) Property {
	return Property{Checkbox: &checked}
}

// QueryRequest is the body of POST /databases/{id}/query.
type QueryRequest struct {
	Filter   *Filter `json:"filter,omitempty"`
	PageSize int     `json:"page_size,omitempty"`
}

type Filter struct {
	Property string      `json:"property"`
	Title    *TextFilter `json:"title,omitempty"`
	RichText *TextFilter `json:"rich_text,omitempty"`
}

type TextFilter struct {
	Equals string `json:"equals"`
}

type QueryResponse struct {
	Object  string    `json:"object"`
	Results []PageRef `json:"results"`
	Message string    `json:"message"`
}

type PageRef struct {
	ID string `json:"id"`
}

// PageResponse is what page create/patch returns: object is "page" on
// success and "error" with Message set on failure.
type PageResponse struct {
	Object  string `json:"object"`
	ID      string `json:"id"`
	Message string `json:"message"`
}
