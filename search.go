package docvault

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/docvault-db/docvault/internal/indexmgr"
	"github.com/docvault-db/docvault/internal/metrics"
	"github.com/docvault-db/docvault/internal/query"
)

// SearchRecord is one document returned by Search, with its body
// included only when the request asked for it.
type SearchRecord struct {
	Document DocumentInfo
	Content  []byte
	Labels   []string
	Tags     map[string]string
}

// SearchResult is the wire shape search responses take.
type SearchResult struct {
	Success          bool
	TimestampUTC     string
	MaxResults       int
	EndOfResults     bool
	TotalRecords     int
	RecordsRemaining int
	Documents        []SearchRecord
}

// conditionFromQuery maps the query package's SearchCondition wire enum
// onto indexmgr's SQL-operator-shaped Condition.
func conditionFromQuery(c query.Condition) indexmgr.Condition {
	switch c {
	case query.Equals:
		return indexmgr.OpEqual
	case query.NotEquals:
		return indexmgr.OpNotEqual
	case query.LessThan:
		return indexmgr.OpLessThan
	case query.LessThanOrEqualTo:
		return indexmgr.OpLessEqual
	case query.GreaterThan:
		return indexmgr.OpGreaterThan
	case query.GreaterThanOrEqualTo:
		return indexmgr.OpGreaterEqual
	case query.IsNull:
		return indexmgr.OpIsNull
	case query.IsNotNull:
		return indexmgr.OpIsNotNull
	case query.Contains:
		return indexmgr.OpContains
	case query.StartsWith:
		return indexmgr.OpStartsWith
	case query.EndsWith:
		return indexmgr.OpEndsWith
	case query.Like:
		return indexmgr.OpLike
	default:
		return indexmgr.OpEqual
	}
}

// numericComparison operators route against value_numeric when the
// filter's value parses as a number, so "10" does not sort lexically
// before "9".
func numericComparison(c query.Condition) bool {
	switch c {
	case query.Equals, query.NotEquals, query.LessThan, query.LessThanOrEqualTo, query.GreaterThan, query.GreaterThanOrEqualTo:
		return true
	default:
		return false
	}
}

// Search executes plan against c and returns the matching documents,
// ordered and paginated.
func (c *Collection) Search(ctx context.Context, plan *query.Plan) (result *SearchResult, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
			if outcome == "" {
				outcome = "error"
			}
		}
		metrics.QueryTotal.WithLabelValues(outcome).Inc()
		metrics.QueryDuration.WithLabelValues(c.info.Name).Observe(time.Since(start).Seconds())
	}()

	preFilter, err := c.labelTagPreFilter(ctx, plan.Labels, plan.Tags)
	if err != nil {
		return nil, err
	}

	candidates := preFilter // nil means "no pre-filter restriction"
	restricted := preFilter != nil

	for _, f := range plan.Filters {
		tableName, ok, err := c.db.index.TableForPath(ctx, f.FieldPath)
		if err != nil {
			return nil, ErrStorageFailure(err, "resolve index table for %s", f.FieldPath)
		}
		if !ok {
			return nil, ErrFieldNotIndexed(f.FieldPath)
		}

		mgrFilter := indexmgr.Filter{Condition: conditionFromQuery(f.Condition), Value: f.Value}
		if numericComparison(f.Condition) {
			if n, err := strconv.ParseFloat(f.Value, 64); err == nil {
				mgrFilter.Numeric = &n
			}
		}

		ids, err := c.db.index.Search(ctx, tableName, mgrFilter)
		if err != nil {
			return nil, ErrStorageFailure(err, "search field %s", f.FieldPath)
		}

		idSet := make(map[string]bool, len(ids))
		for _, id := range ids {
			idSet[id] = true
		}
		candidates = intersect(candidates, idSet, restricted)
		restricted = true
	}

	docIDs, err := c.filterToCollection(ctx, candidates, restricted)
	if err != nil {
		return nil, err
	}

	docs, err := c.loadDocuments(ctx, docIDs)
	if err != nil {
		return nil, err
	}

	sortDocuments(docs, plan.Ordering)

	total := len(docs)
	skip := plan.Skip
	if skip > total {
		skip = total
	}
	end := skip + plan.MaxResults
	if end > total {
		end = total
	}
	page := docs[skip:end]

	records := make([]SearchRecord, 0, len(page))
	for _, doc := range page {
		rec := SearchRecord{Document: doc}
		if plan.IncludeContent {
			body, err := c.content.Get(c.info.ID, doc.ID)
			if err != nil {
				return nil, ErrStorageFailure(err, "load content for document %s", doc.ID)
			}
			rec.Content = body
		}
		records = append(records, rec)
	}

	return &SearchResult{
		Success:          true,
		TimestampUTC:     time.Now().UTC().Format(time.RFC3339Nano),
		MaxResults:       plan.MaxResults,
		EndOfResults:     end >= total,
		TotalRecords:     total,
		RecordsRemaining: total - end,
		Documents:        records,
	}, nil
}

// intersect combines acc (nil when unrestricted) with next. The first
// real filter seeds acc instead of intersecting against an empty set.
func intersect(acc map[string]bool, next map[string]bool, restricted bool) map[string]bool {
	if !restricted {
		return next
	}
	out := make(map[string]bool)
	for id := range acc {
		if next[id] {
			out[id] = true
		}
	}
	return out
}

// filterToCollection resolves the final candidate id set (or, if
// nothing restricted it, every document in the collection) to a plain
// list of document ids scoped to c.
func (c *Collection) filterToCollection(ctx context.Context, candidates map[string]bool, restricted bool) ([]string, error) {
	all, err := c.db.documentIDs(ctx, c.info.ID)
	if err != nil {
		return nil, err
	}
	if !restricted {
		return all, nil
	}
	allSet := make(map[string]bool, len(all))
	for _, id := range all {
		allSet[id] = true
	}
	var out []string
	for id := range candidates {
		if allSet[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// labelTagPreFilter computes the set of document ids in c that carry
// every requested label and every requested tag pair. A request with
// no labels and no tags returns nil, meaning "no
// restriction" rather than an (incorrectly) empty set.
func (c *Collection) labelTagPreFilter(ctx context.Context, labels []string, tags map[string]string) (map[string]bool, error) {
	if len(labels) == 0 && len(tags) == 0 {
		return nil, nil
	}

	var sets []map[string]bool
	for _, label := range labels {
		ids, err := c.documentsWithLabel(ctx, label)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ids)
	}
	for k, v := range tags {
		ids, err := c.documentsWithTag(ctx, k, v)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ids)
	}

	result := sets[0]
	for _, s := range sets[1:] {
		merged := make(map[string]bool)
		for id := range result {
			if s[id] {
				merged[id] = true
			}
		}
		result = merged
	}
	return result, nil
}

func (c *Collection) documentsWithLabel(ctx context.Context, label string) (map[string]bool, error) {
	ph1 := c.db.store.Dialect().Placeholder(1)
	ph2 := c.db.store.Dialect().Placeholder(2)
	rows, err := c.db.store.Query(ctx,
		"SELECT l.document_id FROM labels l JOIN documents d ON d.id = l.document_id WHERE d.collection_id = "+ph1+" AND l.label_value = "+ph2,
		c.info.ID, label)
	if err != nil {
		return nil, ErrStorageFailure(err, "query label %s", label)
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ErrStorageFailure(err, "scan label match")
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (c *Collection) documentsWithTag(ctx context.Context, key, value string) (map[string]bool, error) {
	ph1 := c.db.store.Dialect().Placeholder(1)
	ph2 := c.db.store.Dialect().Placeholder(2)
	ph3 := c.db.store.Dialect().Placeholder(3)
	rows, err := c.db.store.Query(ctx,
		"SELECT t.document_id FROM tags t JOIN documents d ON d.id = t.document_id WHERE d.collection_id = "+ph1+" AND t.tag_key = "+ph2+" AND t.tag_value = "+ph3,
		c.info.ID, key, value)
	if err != nil {
		return nil, ErrStorageFailure(err, "query tag %s", key)
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ErrStorageFailure(err, "scan tag match")
		}
		out[id] = true
	}
	return out, rows.Err()
}

func sortDocuments(docs []DocumentInfo, ordering query.Ordering) {
	var less func(i, j int) bool
	switch ordering {
	case query.CreatedDescending:
		less = func(i, j int) bool { return docs[i].CreatedUTC > docs[j].CreatedUTC }
	case query.LastUpdateAscending:
		less = func(i, j int) bool { return docs[i].LastUpdateUTC < docs[j].LastUpdateUTC }
	case query.LastUpdateDescending:
		less = func(i, j int) bool { return docs[i].LastUpdateUTC > docs[j].LastUpdateUTC }
	case query.NameAscending:
		less = func(i, j int) bool { return docs[i].Name < docs[j].Name }
	case query.NameDescending:
		less = func(i, j int) bool { return docs[i].Name > docs[j].Name }
	default: // CreatedAscending
		less = func(i, j int) bool { return docs[i].CreatedUTC < docs[j].CreatedUTC }
	}
	sort.SliceStable(docs, less)
}
