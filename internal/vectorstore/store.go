// Package vectorstore persists code-chunk embeddings the out-of-core
// index consumes as an external collaborator. The schema and codec
// here are the core's only contract with that index: a SQLite table
// plus a length-prefix-free little-endian f32 embedding codec.
package vectorstore

import (
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS code_chunks (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	content TEXT NOT NULL,
	chunk_type TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	language TEXT NOT NULL,
	embedding BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_code_chunks_file_path ON code_chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_code_chunks_language ON code_chunks(language);
`

// Chunk is one row of the code_chunks table.
type Chunk struct {
	ID        string
	FilePath  string
	Content   string
	ChunkType string
	StartLine int
	EndLine   int
	Language  string
	Embedding []float32
	UpdatedAt time.Time
}

// Store wraps a SQLite-backed code_chunks table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// ensures the code_chunks schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, coreerrors.IOError(err, "failed to open vector store at %q", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, coreerrors.IOError(err, "failed to initialize vector store schema")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Upsert inserts or replaces a chunk by ID.
func (s *Store) Upsert(c Chunk) error {
	_, err := s.db.Exec(
		`INSERT INTO code_chunks (id, file_path, content, chunk_type, start_line, end_line, language, embedding, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   file_path=excluded.file_path, content=excluded.content, chunk_type=excluded.chunk_type,
		   start_line=excluded.start_line, end_line=excluded.end_line, language=excluded.language,
		   embedding=excluded.embedding, updated_at=excluded.updated_at`,
		c.ID, c.FilePath, c.Content, c.ChunkType, c.StartLine, c.EndLine, c.Language,
		EmbeddingToBytes(c.Embedding), c.UpdatedAt.Unix(),
	)
	if err != nil {
		return coreerrors.IOError(err, "failed to upsert chunk %q", c.ID)
	}
	return nil
}

// Get returns the chunk with the given ID.
func (s *Store) Get(id string) (Chunk, error) {
	row := s.db.QueryRow(
		`SELECT id, file_path, content, chunk_type, start_line, end_line, language, embedding, updated_at
		 FROM code_chunks WHERE id = ?`, id)
	return scanChunk(row)
}

// ByFilePath returns every chunk for the given file, ordered by
// ascending start_line.
func (s *Store) ByFilePath(filePath string) ([]Chunk, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, content, chunk_type, start_line, end_line, language, embedding, updated_at
		 FROM code_chunks WHERE file_path = ? ORDER BY start_line ASC`, filePath)
	if err != nil {
		return nil, coreerrors.IOError(err, "failed to query chunks for %q", filePath)
	}
	defer rows.Close()
	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// DeleteByFilePath removes every chunk belonging to filePath, e.g. when
// a file is deleted from the workspace.
func (s *Store) DeleteByFilePath(filePath string) error {
	if _, err := s.db.Exec(`DELETE FROM code_chunks WHERE file_path = ?`, filePath); err != nil {
		return coreerrors.IOError(err, "failed to delete chunks for %q", filePath)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (Chunk, error) {
	var c Chunk
	var embeddingBytes []byte
	var updatedAtUnix int64
	err := row.Scan(&c.ID, &c.FilePath, &c.Content, &c.ChunkType, &c.StartLine, &c.EndLine, &c.Language, &embeddingBytes, &updatedAtUnix)
	if err == sql.ErrNoRows {
		return Chunk{}, coreerrors.NotFound("no chunk found")
	}
	if err != nil {
		return Chunk{}, coreerrors.IOError(err, "failed to scan chunk row")
	}
	c.Embedding = BytesToEmbedding(embeddingBytes)
	c.UpdatedAt = time.Unix(updatedAtUnix, 0)
	return c, nil
}

// EmbeddingToBytes encodes v as a length-prefix-free sequence of
// little-endian f32 values.
func EmbeddingToBytes(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// BytesToEmbedding decodes a little-endian f32 byte sequence back into
// a vector. bytes_to_embedding(embedding_to_bytes(v)) = v for every
// finite f32 vector.
func BytesToEmbedding(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
