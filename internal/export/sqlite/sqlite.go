package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robalyx/wordwatch/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Exporter writes message log records to SQLite databases.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes the records to a fresh database named filename with a single
// message_logs table.
func (e *Exporter) Export(filename string, records []*types.Record) (err error) {
	path := filepath.Join(e.outDir, filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing file %s: %w", filename, err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	err = sqlitex.ExecuteScript(conn, `
		CREATE TABLE message_logs (
			id INTEGER PRIMARY KEY,
			date TEXT NOT NULL,
			channel TEXT NOT NULL,
			author TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL
		);
		CREATE INDEX message_logs_date ON message_logs (date);
	`, nil)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer endFn(&err)

	for _, record := range records {
		err = sqlitex.Execute(conn,
			"INSERT INTO message_logs (date, channel, author, content, timestamp) VALUES (?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{record.Date, record.Channel, record.Author, record.Content, record.Timestamp},
			})
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	return nil
}
