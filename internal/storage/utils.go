package storage

func InitArchive(dbConnStr string) (*PostgresArchive, error) {
	archive, err := NewPostgresArchive(dbConnStr)
	if err != nil {
		return nil, err
	}
	return archive, nil
}
