package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/lexical"
)

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store  *Store
	scorer lexical.Scorer
}

var _ driven.ChunkStore = (*chunkStore)(nil)

const chunkColumns = `c.id, c.document_id, c.ordinal, c.content, c.token_count,
	c.section_label, c.page, c.lexical_key`

// ownedBy restricts c to chunks of one document owned by one owner.
const ownedBy = `JOIN documents d ON d.id = c.document_id
	WHERE c.document_id = ? AND d.owner_id = ?`

// InsertBatch commits chunks, their lexical terms and embeddings in one transaction.
func (s *chunkStore) InsertBatch(ctx context.Context, ownerID, documentID string, batch driven.ChunkBatch) ([]string, error) {
	if len(batch.Chunks) != len(batch.Vectors) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrInvalidInput, len(batch.Chunks), len(batch.Vectors))
	}
	if len(batch.Chunks) == 0 {
		return nil, nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", domain.ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ? AND owner_id = ?", documentID, ownerID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: checking owner: %v", domain.ErrPersistence, err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, ordinal, content, token_count, section_label, page, lexical_key, term_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: preparing statement: %v", domain.ErrPersistence, err)
	}
	defer chunkStmt.Close()

	termStmt, err := tx.PrepareContext(ctx, "INSERT INTO chunk_terms (chunk_id, term, tf) VALUES (?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("%w: preparing statement: %v", domain.ErrPersistence, err)
	}
	defer termStmt.Close()

	embStmt, err := tx.PrepareContext(ctx, "INSERT INTO embeddings (chunk_id, dimensions, vector) VALUES (?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("%w: preparing statement: %v", domain.ErrPersistence, err)
	}
	defer embStmt.Close()

	ids := make([]string, len(batch.Chunks))
	for i, chunk := range batch.Chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.New().String()
		}
		vector := batch.Vectors[i]
		if len(vector) == 0 {
			return nil, fmt.Errorf("%w: chunk %d has no embedding", domain.ErrInvalidInput, chunk.Ordinal)
		}

		terms := lexical.Terms(chunk.Content)
		key := chunk.LexicalKey
		if key == "" {
			key = lexical.Key(chunk.Content)
		}

		if _, err := chunkStmt.ExecContext(ctx, id, documentID, chunk.Ordinal, chunk.Content, chunk.TokenCount,
			chunk.SectionLabel, chunk.Page, key, len(terms)); err != nil {
			return nil, fmt.Errorf("%w: saving chunk %d: %v", domain.ErrPersistence, chunk.Ordinal, err)
		}
		for term, tf := range lexical.Frequencies(terms) {
			if _, err := termStmt.ExecContext(ctx, id, term, tf); err != nil {
				return nil, fmt.Errorf("%w: indexing chunk %d: %v", domain.ErrPersistence, chunk.Ordinal, err)
			}
		}
		if _, err := embStmt.ExecContext(ctx, id, len(vector), float32SliceToBytes(vector)); err != nil {
			return nil, fmt.Errorf("%w: saving embedding %d: %v", domain.ErrPersistence, chunk.Ordinal, err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing batch: %v", domain.ErrPersistence, err)
	}
	return ids, nil
}

// DeleteChunks removes every chunk of the document. Terms and embeddings cascade.
func (s *chunkStore) DeleteChunks(ctx context.Context, ownerID, documentID string) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM chunks WHERE document_id = ?
		AND document_id IN (SELECT id FROM documents WHERE id = ? AND owner_id = ?)
	`, documentID, documentID, ownerID)
	if err != nil {
		return fmt.Errorf("%w: deleting chunks: %v", domain.ErrPersistence, err)
	}
	return nil
}

// ListChunks returns the document's chunks in ordinal order.
func (s *chunkStore) ListChunks(ctx context.Context, ownerID, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks c `+ownedBy+`
		ORDER BY c.ordinal
	`, documentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// CountChunks returns the number of chunks and embeddings of the document.
func (s *chunkStore) CountChunks(ctx context.Context, ownerID, documentID string) (int, int, error) {
	var chunks, embeddings int
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(c.id), COUNT(e.chunk_id)
		FROM chunks c
		LEFT JOIN embeddings e ON e.chunk_id = c.id
		`+ownedBy, documentID, ownerID).Scan(&chunks, &embeddings)
	if err != nil {
		return 0, 0, fmt.Errorf("counting chunks: %w", err)
	}
	return chunks, embeddings, nil
}

// LexicalSearch ranks the document's chunks by BM25 over terms.
func (s *chunkStore) LexicalSearch(ctx context.Context, ownerID, documentID string, terms []string, k int) ([]domain.ScoredChunk, error) {
	if len(terms) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	corpus := lexical.Corpus{DF: make(map[string]int, len(terms))}
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(c.term_count), 0) FROM chunks c `+ownedBy,
		documentID, ownerID).Scan(&corpus.N, &corpus.AvgLength)
	if err != nil {
		return nil, fmt.Errorf("reading corpus statistics: %w", err)
	}
	if corpus.N == 0 {
		return []domain.ScoredChunk{}, nil
	}

	args := []any{documentID, ownerID}
	for _, t := range terms {
		args = append(args, t)
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT t.chunk_id, t.term, t.tf
		FROM chunk_terms t
		JOIN chunks c ON c.id = t.chunk_id
		`+ownedBy+` AND t.term IN (`+placeholders(len(terms))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lexical index: %w", err)
	}

	tfs := make(map[string]map[string]int)
	for rows.Next() {
		var chunkID, term string
		var tf int
		if err := rows.Scan(&chunkID, &term, &tf); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning lexical index: %w", err)
		}
		if tfs[chunkID] == nil {
			tfs[chunkID] = make(map[string]int)
		}
		tfs[chunkID][term] = tf
		corpus.DF[term]++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating lexical index: %w", err)
	}
	rows.Close()

	if len(tfs) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	candidates, err := s.chunksByID(ctx, ownerID, documentID, keys(tfs))
	if err != nil {
		return nil, err
	}

	docs := make([]lexical.Doc, 0, len(candidates))
	byID := make(map[string]domain.Chunk, len(candidates))
	for _, c := range candidates {
		byID[c.chunk.ID] = c.chunk
		docs = append(docs, lexical.Doc{ID: c.chunk.ID, Length: c.termCount, TF: tfs[c.chunk.ID]})
	}

	ranked := s.scorer.Rank(terms, docs, corpus, k)
	out := make([]domain.ScoredChunk, len(ranked))
	for i, r := range ranked {
		out[i] = domain.ScoredChunk{Chunk: byID[r.ID], Score: r.Score}
	}
	return out, nil
}

// VectorSearch ranks the document's chunks by cosine similarity to query.
func (s *chunkStore) VectorSearch(ctx context.Context, ownerID, documentID string, query []float32, k int) ([]domain.ScoredChunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`, e.vector
		FROM chunks c
		JOIN embeddings e ON e.chunk_id = c.id
		`+ownedBy+`
		ORDER BY c.ordinal
	`, documentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	results := []domain.ScoredChunk{}
	for rows.Next() {
		var (
			chunk  domain.Chunk
			vector []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Ordinal, &chunk.Content, &chunk.TokenCount,
			&chunk.SectionLabel, &chunk.Page, &chunk.LexicalKey, &vector); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		results = append(results, domain.ScoredChunk{Chunk: chunk, Score: cosine(query, bytesToFloat32Slice(vector))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	// rows arrive in ordinal order, so equal scores keep the lower ordinal first
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

type indexedChunk struct {
	chunk     domain.Chunk
	termCount int
}

// chunksByID loads chunks with their term counts in ordinal order.
func (s *chunkStore) chunksByID(ctx context.Context, ownerID, documentID string, ids []string) ([]indexedChunk, error) {
	args := []any{documentID, ownerID}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`, c.term_count FROM chunks c `+ownedBy+`
		AND c.id IN (`+placeholders(len(ids))+`)
		ORDER BY c.ordinal
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []indexedChunk
	for rows.Next() {
		var c indexedChunk
		if err := rows.Scan(&c.chunk.ID, &c.chunk.DocumentID, &c.chunk.Ordinal, &c.chunk.Content, &c.chunk.TokenCount,
			&c.chunk.SectionLabel, &c.chunk.Page, &c.chunk.LexicalKey, &c.termCount); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return out, nil
}

// scanChunk scans a chunk row selected with chunkColumns.
func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Ordinal, &chunk.Content, &chunk.TokenCount,
		&chunk.SectionLabel, &chunk.Page, &chunk.LexicalKey); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	return &chunk, nil
}

func keys(m map[string]map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
