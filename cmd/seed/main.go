package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"grantflow/internal/collection"
	"grantflow/internal/db"
	"grantflow/internal/seed"
	"grantflow/internal/submission"
)

func main() {
	var (
		schemaPath = flag.String("schema", "", "path to a collection schema YAML file")
		count      = flag.Int("count", 10, "number of submissions to create")
		dsn        = flag.String("dsn", os.Getenv("DB_DSN"), "postgres DSN")
		mode       = flag.String("mode", submission.ModeTest, "submission mode (test or live)")
		grantName  = flag.String("grant", "Seeded grant", "grant name to create")
		createdBy  = flag.String("created-by", "seed@grantflow.local", "created_by value for generated submissions")
		seedValue  = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	if *schemaPath == "" {
		log.Printf("missing -schema")
		flag.Usage()
		os.Exit(2)
	}
	raw, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Printf("read schema: %v", err)
		os.Exit(1)
	}
	schema, err := collection.ParseSchemaYAML(raw)
	if err != nil {
		log.Printf("parse schema: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()
	dbConn, err := db.OpenPostgres(ctx, *dsn)
	if err != nil {
		log.Printf("database error: %v", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	collectionSvc := collection.NewService(dbConn)
	submissionSvc := submission.NewService(dbConn, collectionSvc)

	grant, err := collectionSvc.CreateGrant(ctx, *grantName)
	if err != nil {
		log.Printf("create grant: %v", err)
		os.Exit(1)
	}
	record, err := collectionSvc.CreateCollection(ctx, collection.CreateCollectionInput{
		GrantID:   grant.ID,
		Key:       schema.Key(),
		Title:     schema.Title(),
		Questions: schema.Questions(),
	})
	if err != nil {
		log.Printf("create collection: %v", err)
		os.Exit(1)
	}
	log.Printf("created collection %s (%s) under grant %s", record.ID, record.Key, grant.ID)

	gen := seed.NewGenerator(*seedValue)
	for i := 0; i < *count; i++ {
		sub, err := submissionSvc.Create(ctx, submission.CreateInput{
			CollectionID: record.ID,
			Mode:         *mode,
			CreatedBy:    *createdBy,
		})
		if err != nil {
			log.Printf("create submission: %v", err)
			os.Exit(1)
		}

		answers := gen.AnswerSet(schema)
		for key, a := range answers.Map() {
			if _, err := submissionSvc.SaveAnswer(ctx, submission.SaveAnswerInput{
				SubmissionID: sub.ID,
				QuestionKey:  key,
				Answer:       a,
			}); err != nil {
				log.Printf("save answer %s on %s: %v", key, sub.Reference, err)
				os.Exit(1)
			}
		}
		if _, err := submissionSvc.Finalize(ctx, sub.ID); err != nil {
			log.Printf("finalize %s: %v", sub.Reference, err)
			os.Exit(1)
		}
		log.Printf("seeded submission %s (%d/%d)", sub.Reference, i+1, *count)
	}
}
