package seeder

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor  = 1000000
	activityKindDivisor = 8
)

// Synthetic roster sizes. Small pools make the generated stream look like
// one lab's activity instead of uncorrelated noise.
const (
	memberPoolSize   = 24
	projectPoolSize  = 6
	taskPoolSize     = 40
	documentPoolSize = 30
)

// Constants for activity scenario cases.
const (
	caseProjectBrowse  = 0
	caseTaskCompleted  = 1
	caseTaskCreated    = 2
	caseDocumentUpload = 3
	caseSearch         = 4
	caseLogin          = 5
	caseLogout         = 6
	caseInteraction    = 7
)

// searchQueries is the pool of synthetic search terms.
var searchQueries = []string{
	"adsorption isotherm", "perovskite", "sample prep", "ethics form",
	"spectroscopy", "funding report", "lab safety", "kinetics",
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, max) using crypto/rand.
func getRandomInt(max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}

// generateStatements creates the specified number of synthetic statements.
func generateStatements(ctx context.Context, config *Config, stats *Stats) ([]statement.Statement, error) {
	logger.Get().Info(ctx, "generating synthetic lab statements",
		logger.Int("numStatements", config.NumStatements))

	statements := make([]statement.Statement, config.NumStatements)

	// One registration ties the whole run together in the collector.
	runID := uuid.NewString()

	// Generate statements concurrently
	type statementResult struct {
		index int
		st    statement.Statement
		err   error
	}

	resultChan := make(chan statementResult, config.NumStatements)

	// Use worker pool for statement generation
	workerCount := minInt(config.Workers, config.NumStatements)
	perWorker := config.NumStatements / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = config.NumStatements // Last worker gets the remainder
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- statementResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- statementResult{index: i, st: generateSingleStatement(runID)}
				}
			}
		}(start, end)
	}

	// Collect results
	for i := 0; i < config.NumStatements; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during statement generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate statement %d: %w", result.index, result.err)
			}
			statements[result.index] = result.st
		}
	}

	stats.StatementsGenerated = len(statements)
	logger.Get().Info(ctx, "generated statements successfully", logger.Int("count", len(statements)))

	return statements, nil
}

// generateSingleStatement creates one statement for a random lab member
// performing a random portal activity.
func generateSingleStatement(runID string) statement.Statement {
	actor := randomMember()
	verb, object, result := randomActivity()

	opts := []statement.Option{
		statement.WithContext(statement.ContextInfo{
			Registration: runID,
			Platform:     "HU Lab Portal",
			Language:     "en-US",
		}),
	}
	if result != nil {
		opts = append(opts, statement.WithResult(*result))
	}

	return statement.New(actor, verb, object, opts...)
}

// randomMember picks one synthetic researcher from the roster.
func randomMember() statement.Actor {
	n := getRandomInt(memberPoolSize)
	return statement.AgentMbox(
		fmt.Sprintf("Lab Member %02d", n+1),
		fmt.Sprintf("member%02d@hulab.polyu.edu.hk", n+1),
	)
}

// randomActivity rolls one of the portal activity scenarios.
func randomActivity() (statement.Verb, statement.Object, *statement.Result) {
	switch getRandomInt(activityKindDivisor) {
	case caseProjectBrowse:
		id := fmt.Sprintf("proj-%02d", getRandomInt(projectPoolSize)+1)
		return statement.Experienced, projectActivity(id), nil
	case caseTaskCompleted:
		id := fmt.Sprintf("task-%03d", getRandomInt(taskPoolSize)+1)
		done := true
		ok := getRandomFloat() > 0.1
		return statement.Completed,
			statement.Activity(statement.ActivityIRI("task", id), "Task "+id, "task"),
			&statement.Result{Completion: &done, Success: &ok}
	case caseTaskCreated:
		id := fmt.Sprintf("task-%03d", getRandomInt(taskPoolSize)+1)
		return statement.Created,
			statement.Activity(statement.ActivityIRI("task", id), "Task "+id, "task"), nil
	case caseDocumentUpload:
		id := fmt.Sprintf("doc-%03d", getRandomInt(documentPoolSize)+1)
		return statement.Uploaded,
			statement.Activity(statement.ActivityIRI("document", id), id+".pdf", "document"), nil
	case caseSearch:
		q := searchQueries[getRandomInt(len(searchQueries))]
		return statement.Searched,
			statement.Activity(statement.ActivityIRI("search", uuid.NewString()), q, "search"), nil
	case caseLogin:
		return statement.LoggedIn, sessionActivity(), nil
	case caseLogout:
		return statement.LoggedOut, sessionActivity(), nil
	default: // caseInteraction
		id := fmt.Sprintf("proj-%02d", getRandomInt(projectPoolSize)+1)
		return statement.Interacted, projectActivity(id), nil
	}
}

func projectActivity(id string) statement.Object {
	return statement.Activity(statement.ActivityIRI("project", id), "Project "+id, "project")
}

func sessionActivity() statement.Object {
	return statement.Activity(statement.ActivityIRI("portal", "session"), "HU Lab Portal", "application")
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
