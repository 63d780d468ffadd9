package staging

const stagedBooksSchema = `
CREATE TABLE IF NOT EXISTS staged_books (
	isbn TEXT PRIMARY KEY NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('new', 'processed')),
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_staged_books_status ON staged_books(status);
`
