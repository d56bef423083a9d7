// Package postgres provides PostgreSQL implementations of the persona and
// memory store contracts, backed by the pgvector extension for similarity
// search.
package postgres

import (
	"fmt"
	"sync"
)

// The schema is parameterized on the embedding dimension, which pgvector
// bakes into every vector column. Building the DDL repeatedly for the same
// dimension is wasted work when several stores share one database, so the
// factory memoizes per dimension. The cache is owned here, by the store
// initialization path, and nowhere else.
var (
	schemaMu    sync.Mutex
	schemaByDim = make(map[int]string)
)

// schemaDDL returns the idempotent DDL for the given embedding dimension.
func schemaDDL(dimension int) string {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if ddl, ok := schemaByDim[dimension]; ok {
		return ddl
	}

	ddl := fmt.Sprintf(schemaTemplate, dimension, dimension, dimension)
	schemaByDim[dimension] = ddl
	return ddl
}

// schemaTemplate contains the SQL statements to create the context
// orchestration schema. All statements use IF NOT EXISTS so applying the
// schema at store open is safe. The three %d verbs are the embedding
// dimension for personas, semantic_memories, and episodic_memories.
const schemaTemplate = `
-- Personas table: one row per operating domain, vector-indexed on the
-- semantic description for routing.
CREATE TABLE IF NOT EXISTS personas (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    semantic_description TEXT NOT NULL,
    config JSONB,
    embedding vector(%d),

    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Semantic memories: durable domain knowledge, curated out-of-band.
-- position records insertion order for deterministic tie-breaks.
CREATE TABLE IF NOT EXISTS semantic_memories (
    id TEXT PRIMARY KEY,
    domain_id TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT '',
    text_content TEXT NOT NULL,
    attributes JSONB,
    embedding vector(%d),
    position BIGSERIAL,

    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Episodic memories: append-only per-turn interaction log. Never mutated
-- or deleted by the core; retention is an external policy.
CREATE TABLE IF NOT EXISTS episodic_memories (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    domain_id TEXT NOT NULL,
    user_input TEXT NOT NULL,
    assistant_output TEXT NOT NULL,
    ts TIMESTAMPTZ NOT NULL,
    embedding vector(%d),

    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Scope filters
CREATE INDEX IF NOT EXISTS idx_semantic_memories_domain ON semantic_memories(domain_id);
CREATE INDEX IF NOT EXISTS idx_episodic_memories_domain ON episodic_memories(domain_id);
CREATE INDEX IF NOT EXISTS idx_episodic_memories_user ON episodic_memories(user_id);
CREATE INDEX IF NOT EXISTS idx_episodic_memories_ts ON episodic_memories(ts DESC);
`

// vectorIndexDDL creates ivfflat cosine indexes for approximate
// nearest-neighbor search. ivfflat needs at least one row per table, so each
// index creation is guarded; this runs again on every open and picks up
// tables that have since gained data.
const vectorIndexDDL = `
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_personas_embedding_cosine') THEN
    IF EXISTS (SELECT 1 FROM personas LIMIT 1) THEN
      EXECUTE 'CREATE INDEX idx_personas_embedding_cosine ON personas USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
    END IF;
  END IF;

  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_semantic_memories_embedding_cosine') THEN
    IF EXISTS (SELECT 1 FROM semantic_memories LIMIT 1) THEN
      EXECUTE 'CREATE INDEX idx_semantic_memories_embedding_cosine ON semantic_memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
    END IF;
  END IF;

  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_episodic_memories_embedding_cosine') THEN
    IF EXISTS (SELECT 1 FROM episodic_memories LIMIT 1) THEN
      EXECUTE 'CREATE INDEX idx_episodic_memories_embedding_cosine ON episodic_memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
    END IF;
  END IF;
END$$;
`
