package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsqueue/internal/news"
)

func queryStore() *PostgresStore {
	return &PostgresStore{sb: statementBuilder()}
}

func TestPostgresHeadlinePrefixQuery(t *testing.T) {
	headline := "Central bank raises interest rates again amid the inflation surge"
	prefix := news.HeadlinePrefix(headline, 50)

	query, args, err := queryStore().headlinePrefixQuery(7, prefix, 50).ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT 1 FROM news_queue WHERE workspace_id = $1 AND LOWER(LEFT(headline, $2)) = $3 LIMIT 1", query)
	require.Equal(t, []interface{}{int64(7), 50, "central bank raises interest rates again amid the "}, args)

	// the bound prefix has exactly as many runes as LEFT returns
	require.Len(t, []rune(args[2].(string)), args[1].(int))
}

func TestPostgresSourceURLQueryMatchesHash(t *testing.T) {
	urls := []string{"https://x.test/a", "https://x.test/a/"}

	query, args, err := queryStore().sourceURLQuery(1, urls).ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT 1 FROM news_queue WHERE workspace_id = $1 AND (source_url IN ($2,$3) OR url_hash IN ($4)) LIMIT 1", query)
	require.Equal(t, []interface{}{int64(1), "https://x.test/a", "https://x.test/a/", news.URLHash("https://x.test/a")}, args)
}

func TestPostgresHeadlineQuery(t *testing.T) {
	query, args, err := queryStore().headlineQuery(2, "Exact headline").ToSql()
	require.NoError(t, err)
	require.Equal(t, "SELECT 1 FROM news_queue WHERE workspace_id = $1 AND headline = $2 LIMIT 1", query)
	require.Equal(t, []interface{}{int64(2), "Exact headline"}, args)
}

func TestPostgresRetentionQueries(t *testing.T) {
	before := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	s := queryStore()

	query, args, err := s.archiveQuery(3, before).ToSql()
	require.NoError(t, err)
	require.Equal(t, "UPDATE news_queue SET status = $1 WHERE workspace_id = $2 AND status = $3 AND fetched_at < $4", query)
	require.Equal(t, []interface{}{"archived", int64(3), "new", before}, args)

	query, args, err = s.purgeQuery(3, before).ToSql()
	require.NoError(t, err)
	require.Equal(t, "DELETE FROM news_queue WHERE workspace_id = $1 AND fetched_at < $2", query)
	require.Equal(t, []interface{}{int64(3), before}, args)

	query, args, err = s.orphanDraftsQuery(3).ToSql()
	require.NoError(t, err)
	require.Equal(t, "DELETE FROM ai_drafts WHERE workspace_id = $1 AND NOT EXISTS (SELECT 1 FROM news_queue n WHERE n.id = ai_drafts.news_id)", query)
	require.Equal(t, []interface{}{int64(3)}, args)
}
