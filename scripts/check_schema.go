//go:build ignore

// Reports the state of a gitlab2graph database: which uniqueness
// constraints exist versus the entity registry, and node/relationship
// counts per label.
//
// Usage: NEO4J_PASSWORD=... go run scripts/check_schema.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

func main() {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		log.Fatal("NEO4J_PASSWORD environment variable must be set")
	}
	database := os.Getenv("NEO4J_DATABASE")
	if database == "" {
		database = "neo4j"
	}

	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		log.Fatalf("Failed to create driver: %v", err)
	}
	defer driver.Close(ctx)

	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatalf("Failed to verify connectivity: %v", err)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: database,
	})
	defer session.Close(ctx)

	// Query 1: uniqueness constraints versus the entity registry
	fmt.Println("=== Uniqueness Constraints ===")
	result, err := session.Run(ctx,
		"SHOW CONSTRAINTS YIELD type, labelsOrTypes, properties "+
			"WHERE type = 'UNIQUENESS' RETURN labelsOrTypes, properties",
		nil)
	if err != nil {
		log.Fatalf("SHOW CONSTRAINTS failed: %v", err)
	}

	existing := map[string]bool{}
	for result.Next(ctx) {
		record := result.Record()
		labels, _ := record.Get("labelsOrTypes")
		properties, _ := record.Get("properties")
		for _, label := range toStrings(labels) {
			for _, property := range toStrings(properties) {
				existing[label+"."+property] = true
			}
		}
	}
	if err := result.Err(); err != nil {
		log.Fatalf("SHOW CONSTRAINTS failed: %v", err)
	}

	missing := 0
	for _, entity := range graph.Types() {
		for _, key := range entity.UniqueKeys {
			if existing[entity.Label+"."+key] {
				fmt.Printf("  ✓ %s.%s\n", entity.Label, key)
			} else {
				fmt.Printf("  ❌ %s.%s missing\n", entity.Label, key)
				missing++
			}
		}
	}
	if missing > 0 {
		fmt.Printf("  %d constraints missing, run: gitlab2graph init <config.ini>\n", missing)
	}

	// Query 2: node counts per schema label
	fmt.Println("\n=== Node Counts ===")
	for _, entity := range graph.Types() {
		records, err := session.Run(ctx,
			fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS c", entity.Label), nil)
		if err != nil {
			log.Fatalf("Count query for %s failed: %v", entity.Label, err)
		}
		if records.Next(ctx) {
			count, _ := records.Record().Get("c")
			fmt.Printf("  %-12s %v\n", entity.Label, count)
		}
	}

	// Query 3: relationship counts by type
	fmt.Println("\n=== Relationship Counts ===")
	result, err = session.Run(ctx,
		"MATCH ()-[r]->() RETURN type(r) AS rel, count(r) AS c ORDER BY c DESC", nil)
	if err != nil {
		log.Fatalf("Relationship count query failed: %v", err)
	}
	for result.Next(ctx) {
		record := result.Record()
		rel, _ := record.Get("rel")
		count, _ := record.Get("c")
		fmt.Printf("  %-20s %v\n", rel, count)
	}
	if err := result.Err(); err != nil {
		log.Fatalf("Relationship count query failed: %v", err)
	}
}

func toStrings(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
