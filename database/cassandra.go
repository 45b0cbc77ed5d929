// database/cassandra.go
package database

import (
	"time"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"
)

// NewCassandraDB Cassandra bilan ulanishni yaratadi,
// agar keyspace mavjud bo'lmasa - uni yaratadi va table'larni tayyorlaydi.
func NewCassandraDB(hosts []string) (*gocql.Session, error) {
	// Avval default cluster (keyspace'siz) orqali ulanamiz
	cluster := gocql.NewCluster(hosts...)
	cluster.Consistency = gocql.Quorum
	cluster.ProtoVersion = 4
	cluster.ConnectTimeout = 10 * time.Second
	cluster.Timeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	// Keyspace yaratish (agar mavjud bo'lmasa)
	if err := createKeyspace(session); err != nil {
		return nil, err
	}
	logrus.Println("✅ Keyspace 'stream' mavjud yoki yaratildi")

	// Endi yangi cluster - stream keyspace bilan
	cluster.Keyspace = "stream"
	keyspaceSession, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	// Table'larni yaratish
	if err := createTables(keyspaceSession); err != nil {
		return nil, err
	}
	logrus.Println("✅ Cassandra table'lar yaratildi")

	return keyspaceSession, nil
}

func createKeyspace(session *gocql.Session) error {
	query := `
	CREATE KEYSPACE IF NOT EXISTS stream
	WITH replication = {
		'class': 'SimpleStrategy',
		'replication_factor': 1
	}`
	return session.Query(query).Exec()
}

// createTables - ingest engine ishlatadigan jadvallar.
// videos.version LWT compare-and-swap uchun, barcha status/progress
// yozuvlari shu ustun orqali guard qilinadi.
func createTables(session *gocql.Session) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			id UUID PRIMARY KEY,
			user_id UUID,
			title TEXT,
			description TEXT,
			thumbnail_path TEXT,
			original_file TEXT,
			duration INT,
			width INT,
			height INT,
			file_size BIGINT,
			status TEXT,
			visibility TEXT,
			processing_progress INT,
			error_message TEXT,
			comments_count INT,
			attempt_generation BIGINT,
			version BIGINT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			published_at TIMESTAMP
		)`,

		// (video_id, quality_name) uniqueness partition + clustering key
		// orqali ta'minlanadi, insert IF NOT EXISTS bilan qilinadi
		`CREATE TABLE IF NOT EXISTS video_qualities (
			video_id UUID,
			quality_name TEXT,
			width INT,
			height INT,
			bitrate TEXT,
			file_path TEXT,
			hls_playlist_path TEXT,
			file_size BIGINT,
			attempt_generation BIGINT,
			created_at TIMESTAMP,
			PRIMARY KEY (video_id, quality_name)
		)`,
	}

	for _, query := range tables {
		if err := session.Query(query).Exec(); err != nil {
			return err
		}
	}

	return nil
}
