package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrEmptyEmbedding = errors.New("embedding is empty")
)

type Metrics interface {
	ObserveDB(method string, err error, duration time.Duration)
}

type Store struct {
	db      *sql.DB
	metrics Metrics
}

func New(db *sql.DB, metrics Metrics) *Store {
	return &Store{db: db, metrics: metrics}
}

func (s *Store) observe(method string, err *error) func() {
	if s.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		s.metrics.ObserveDB(method, *err, time.Since(start))
	}
}

//go:embed schema.sql
var schema string

// EnsureSchema creates the pgvector extension and both tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) (err error) {
	defer s.observe("EnsureSchema", &err)()
	_, err = s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Ping(ctx context.Context) (err error) {
	defer s.observe("Ping", &err)()
	return s.db.PingContext(ctx)
}

// Now returns the database clock; used by the connectivity probe.
func (s *Store) Now(ctx context.Context) (t time.Time, err error) {
	defer s.observe("Now", &err)()
	err = s.db.QueryRowContext(ctx, `SELECT NOW()`).Scan(&t)
	return t, err
}

type LogParams struct {
	Input     string
	Response  sql.NullString
	Timestamp time.Time
}

// InsertLog stores one question/answer interaction and returns its id.
// Control characters are replaced before the row is written.
func (s *Store) InsertLog(ctx context.Context, arg LogParams) (id int64, err error) {
	defer s.observe("InsertLog", &err)()

	const q = `INSERT INTO log (input, response, timestamp)
VALUES ($1, $2, $3)
RETURNING id`
	response := arg.Response
	if response.Valid {
		response.String = CleanText(response.String)
	}
	ts := arg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	err = s.db.QueryRowContext(ctx, q, CleanText(arg.Input), response, ts).Scan(&id)
	return id, err
}

type Match struct {
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// TopMatches returns the greenlist entries closest to embedding by cosine distance.
func (s *Store) TopMatches(ctx context.Context, embedding []float32, limit int) (matches []Match, err error) {
	defer s.observe("TopMatches", &err)()

	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	const q = `SELECT content, embedding <=> $1::vector AS distance
FROM greenlist_embeddings
ORDER BY distance ASC
LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, VectorLiteral(embedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m Match
		if err = rows.Scan(&m.Content, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	err = rows.Err()
	return matches, err
}

func (s *Store) InsertEmbedding(ctx context.Context, content string, embedding []float32) (err error) {
	defer s.observe("InsertEmbedding", &err)()

	if len(embedding) == 0 {
		return ErrEmptyEmbedding
	}
	const q = `INSERT INTO greenlist_embeddings (content, embedding) VALUES ($1, $2::vector)`
	_, err = s.db.ExecContext(ctx, q, content, VectorLiteral(embedding))
	return err
}

// CountEmbeddings reports how many greenlist rows exist.
func (s *Store) CountEmbeddings(ctx context.Context) (n int64, err error) {
	defer s.observe("CountEmbeddings", &err)()
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM greenlist_embeddings`).Scan(&n)
	return n, err
}

// VectorLiteral renders an embedding in pgvector text form, e.g. "[0.1,0.2]".
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

var controlReplacer = func() *strings.Replacer {
	var pairs []string
	for r := rune(0); r < 0x20; r++ {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		pairs = append(pairs, string(r), " ")
	}
	pairs = append(pairs, "\u007f", " ", "\u2028", " ", "\u2029", " ")
	return strings.NewReplacer(pairs...)
}()

// CleanText replaces C0 control characters (except tab, LF and CR), DEL and the
// Unicode line/paragraph separators with spaces.
func CleanText(s string) string {
	return controlReplacer.Replace(s)
}
