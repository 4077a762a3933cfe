package db

// postgresMigrations is the ordered schema history.
var postgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_runs_table",
		Up: `
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL,
				input_text TEXT NOT NULL,
				settings JSONB NOT NULL,
				results JSONB NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at DESC);
		`,
		Down: `DROP TABLE IF EXISTS runs;`,
	},
	{
		Version: 2,
		Name:    "create_app_settings_table",
		Up: `
			CREATE TABLE IF NOT EXISTS app_settings (
				name TEXT PRIMARY KEY,
				data JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
		Down: `DROP TABLE IF EXISTS app_settings;`,
	},
	{
		Version: 3,
		Name:    "create_prompts_table",
		Up: `
			CREATE TABLE IF NOT EXISTS prompts (
				name TEXT PRIMARY KEY,
				content TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
		Down: `DROP TABLE IF EXISTS prompts;`,
	},
}
