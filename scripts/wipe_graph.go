//go:build ignore

// Deletes every node carrying one of the gitlab2graph schema labels,
// relationships included. Useful before a clean re-import, a failed
// batch leaves a partial graph behind.
//
// Usage: NEO4J_PASSWORD=... go run scripts/wipe_graph.go --force
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
	if len(os.Args) < 2 || os.Args[1] != "--force" {
		fmt.Println("This deletes every imported node, pass --force to confirm.")
		os.Exit(1)
	}

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
	log.Println("✅ Connected to Neo4j")

	session := driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database})
	defer session.Close(ctx)

	total := int64(0)
	for _, entity := range graph.Types() {
		deleted, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx,
				fmt.Sprintf("MATCH (n:%s) DETACH DELETE n RETURN count(n) AS c", entity.Label),
				nil)
			if err != nil {
				return nil, err
			}
			record, err := result.Single(ctx)
			if err != nil {
				return nil, err
			}
			count, _ := record.Get("c")
			return count, nil
		})
		if err != nil {
			log.Fatalf("Failed to delete %s nodes: %v", entity.Label, err)
		}

		count, _ := deleted.(int64)
		total += count
		log.Printf("🗑️  %s: %d nodes deleted", entity.Label, count)
	}

	log.Printf("✅ Wipe complete, %d nodes removed", total)
}
