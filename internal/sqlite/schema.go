package sqlite

// Schema DDL. The document table holds one encoded document per slot; the
// external data table holds payloads keyed "<object uuid>/<name>".
const (
	createDocuments = `CREATE TABLE IF NOT EXISTS documents (
    doc_id TEXT PRIMARY KEY,
    doc_uuid TEXT NOT NULL,
    payload TEXT NOT NULL,
    modified TEXT NOT NULL
);`

	createExternalData = `CREATE TABLE IF NOT EXISTS external_data (
    data_key TEXT PRIMARY KEY,
    object_uuid TEXT NOT NULL,
    payload BLOB NOT NULL,
    updated_at TEXT NOT NULL
);`
)

const (
	idxExternalDataObject = `CREATE INDEX IF NOT EXISTS idx_external_data_object ON external_data(object_uuid);`
)

var schemaDDL = []string{
	createDocuments,
	createExternalData,
}

var indexDDL = []string{
	idxExternalDataObject,
}
