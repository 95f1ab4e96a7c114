package record

// Category is one entry of the closed expense taxonomy.
type Category struct {
	ID    string
	Label string
	Color string
}

// Categories is the closed taxonomy, in display order.
var Categories = []Category{
	{ID: "food", Label: "Food", Color: "#4CAF50"},
	{ID: "transport", Label: "Transport", Color: "#2196F3"},
	{ID: "entertainment", Label: "Entertainment", Color: "#FF9800"},
	{ID: "books", Label: "Books", Color: "#9C27B0"},
	{ID: "other", Label: "Other", Color: "#607D8B"},
}

// DefaultCategory is assigned when a record carries no category, including
// records read from old snapshot versions.
const DefaultCategory = "food"

// ValidCategory reports whether id names a taxonomy entry.
func ValidCategory(id string) bool {
	for _, c := range Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// CategoryByID resolves a taxonomy entry, falling back to "other" for
// unknown identifiers.
func CategoryByID(id string) Category {
	for _, c := range Categories {
		if c.ID == id {
			return c
		}
	}
	return Categories[len(Categories)-1]
}
