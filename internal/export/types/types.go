package types

// Record is one exported message log row.
type Record struct {
	Date      string
	Channel   string
	Author    string
	Content   string
	Timestamp string
}

// Header is the column order shared by every format.
var Header = []string{"Date", "Channel", "Author", "Content", "Timestamp"}

// Values returns the record's columns in Header order.
func (r *Record) Values() []string {
	return []string{r.Date, r.Channel, r.Author, r.Content, r.Timestamp}
}
