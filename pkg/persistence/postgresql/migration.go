package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE sfc_graphs (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_sfc_graphs_name ON sfc_graphs(name);
			CREATE INDEX idx_sfc_graphs_deleted_at ON sfc_graphs(deleted_at);
		`,
	}
}
