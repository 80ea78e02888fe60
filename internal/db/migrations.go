package db

// The journal is record keeping only: nothing the submission loop decides
// reads from it. Voted state always comes from the remote service.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS forecasts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    forecast_id TEXT,
    market_slug TEXT NOT NULL,
    category TEXT,
    p_yes REAL NOT NULL,
    confidence REAL NOT NULL,
    stake_units REAL NOT NULL,
    selected_outcome TEXT,
    rationale TEXT,
    submitted_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_forecasts_slug ON forecasts(market_slug);

CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    round_id TEXT NOT NULL,
    pack_market_id TEXT NOT NULL,
    category TEXT,
    p_yes REAL NOT NULL,
    confidence REAL NOT NULL,
    stake INTEGER NOT NULL,
    rationale TEXT,
    submitted_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_predictions_round ON predictions(round_id);

CREATE TABLE IF NOT EXISTS scores (
    market_slug TEXT PRIMARY KEY,
    category TEXT,
    p_yes REAL NOT NULL,
    resolved_outcome TEXT,
    brier REAL NOT NULL,
    pnl_points REAL NOT NULL,
    settled_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
