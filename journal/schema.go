package journal

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	units REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	fees REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	order_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	units REAL NOT NULL,
	price REAL NOT NULL,
	fees REAL NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL,
	exposure REAL NOT NULL,
	drawdown REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	price REAL NOT NULL,
	strength REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS rejections (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);
CREATE INDEX IF NOT EXISTS idx_signals_run ON signals(run_id);
`
