package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/efebarandurmaz/lineage/internal/graph"
)

// batchSize bounds the rows sent per write transaction.
const batchSize = 500

const (
	cypherVersions = "UNWIND $versions AS v " +
		"MERGE (n:Version {name: v.name}) SET n.order = v.order"

	cypherClearEdges = "MATCH (s:Setting {kind: $kind}) " +
		"OPTIONAL MATCH (s)-[r:PRESENT_IN|INTRODUCED_IN|REMOVED_IN]->(:Version) " +
		"DELETE r"

	cypherDropStale = "MATCH (s:Setting {kind: $kind}) " +
		"WHERE NOT s.name IN $names " +
		"DETACH DELETE s"

	cypherSettings = "UNWIND $rows AS row " +
		"MERGE (s:Setting {kind: row.kind, name: row.name}) " +
		"SET s.type = row.type, s.category = row.category, s.cloud_only = row.cloud_only, s.docs_url = row.docs_url " +
		"WITH s, row " +
		"UNWIND row.presence AS p " +
		"MATCH (v:Version {name: p.revision}) " +
		"MERGE (s)-[e:PRESENT_IN]->(v) " +
		"SET e.default = p.default, e.tier = p.tier, e.important = p.important"

	cypherIntroduced = "UNWIND $rows AS row " +
		"WITH row WHERE row.introduced_in <> '' " +
		"MATCH (s:Setting {kind: row.kind, name: row.name}) " +
		"MATCH (v:Version {name: row.introduced_in}) " +
		"MERGE (s)-[:INTRODUCED_IN]->(v)"

	cypherRemoved = "UNWIND $rows AS row " +
		"WITH row WHERE row.removed_in <> '' " +
		"MATCH (s:Setting {kind: row.kind, name: row.name}) " +
		"MATCH (v:Version {name: row.removed_in}) " +
		"MERGE (s)-[:REMOVED_IN]->(v)"

	cypherPresence = "MATCH (:Setting {kind: $kind, name: $name})-[:PRESENT_IN]->(v:Version) " +
		"RETURN v.name AS name ORDER BY v.order"
)

// Neo4jRepository implements graph.Repository using Neo4j.
type Neo4jRepository struct {
	driver neo4j.DriverWithContext
}

// NewNeo4j creates a Neo4j-backed repository.
func NewNeo4j(ctx context.Context, uri, username, password string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver}, nil
}

func (r *Neo4jRepository) StoreVersions(ctx context.Context, versions []string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, cypherVersions, map[string]any{"versions": versionParams(versions)})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("store versions: %w", err)
	}
	return nil
}

func (r *Neo4jRepository) StoreSettings(ctx context.Context, kind string, nodes []graph.SettingNode) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	names := make([]any, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, cypherClearEdges, map[string]any{"kind": kind}); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, cypherDropStale, map[string]any{"kind": kind, "names": names})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", kind, err)
	}

	rows := settingParams(nodes)
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		batch := rows[start:end]
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			for _, q := range []string{cypherSettings, cypherIntroduced, cypherRemoved} {
				if _, err := tx.Run(ctx, q, map[string]any{"rows": batch}); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
		if err != nil {
			return fmt.Errorf("store %s settings %d-%d: %w", kind, start, end, err)
		}
	}
	return nil
}

func (r *Neo4jRepository) QueryPresence(ctx context.Context, kind, name string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, cypherPresence, map[string]any{"kind": kind, "name": name})
		if err != nil {
			return nil, err
		}
		var names []string
		for records.Next(ctx) {
			n, _ := records.Record().Get("name")
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
		return names, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (r *Neo4jRepository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func versionParams(versions []string) []any {
	out := make([]any, len(versions))
	for i, v := range versions {
		out[i] = map[string]any{"name": v, "order": i}
	}
	return out
}

func settingParams(nodes []graph.SettingNode) []any {
	rows := make([]any, len(nodes))
	for i, n := range nodes {
		presence := make([]any, len(n.Presence))
		for j, p := range n.Presence {
			presence[j] = map[string]any{
				"revision":  p.Revision,
				"default":   p.Default,
				"tier":      p.Tier,
				"important": p.Important,
			}
		}
		rows[i] = map[string]any{
			"kind":          n.Kind,
			"name":          n.Name,
			"type":          n.Type,
			"category":      n.Category,
			"cloud_only":    n.CloudOnly,
			"docs_url":      n.DocsURL,
			"introduced_in": n.IntroducedIn,
			"removed_in":    n.RemovedIn,
			"presence":      presence,
		}
	}
	return rows
}

var _ graph.Repository = (*Neo4jRepository)(nil)
