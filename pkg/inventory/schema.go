package inventory

// schemaVersion is the current database schema version.
const schemaVersion = 1

// schema creates the observation history tables. Timestamps are stored
// as Unix seconds so range queries stay plain integer comparisons.
const schema = `
CREATE TABLE IF NOT EXISTS builds (
    build_id TEXT PRIMARY KEY,
    observed_at INTEGER NOT NULL,
    root TEXT NOT NULL,
    certificates INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
    id TEXT PRIMARY KEY,
    build_id TEXT NOT NULL,
    observed_at INTEGER NOT NULL,
    path TEXT NOT NULL,
    identities TEXT NOT NULL,
    not_before INTEGER NOT NULL,
    not_after INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_builds_observed_at ON builds(observed_at);
CREATE INDEX IF NOT EXISTS idx_observations_build_id ON observations(build_id);
CREATE INDEX IF NOT EXISTS idx_observations_observed_at ON observations(observed_at);
CREATE INDEX IF NOT EXISTS idx_observations_not_after ON observations(not_after);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
