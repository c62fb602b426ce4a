package domain

// Article is a single news item shown in the preview feed and in digest emails.
// Description and ImageURL are empty when the source did not provide them.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url,omitempty"`
}
