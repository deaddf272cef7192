package workerclient

import (
	"context"
	"time"

	"github.com/daniel-olson-code/pipeline/pkg/blobstore"
	"github.com/daniel-olson-code/pipeline/pkg/types"
)

// StepExecutor runs a step given its definition and its parents' output
// payloads, and returns this step's own output payload. Real language
// executors (python/postgres/sqlite3) are out of scope: the coordinator
// never reads step bodies, and neither does this package. Callers plug in
// their own StepExecutor; DefaultExecutor is a reference implementation
// useful for demos and tests.
type StepExecutor func(def *types.StepDef, parentData []any) (any, error)

// DefaultExecutor never inspects Language or Code. It echoes its parents'
// payloads back as output, which is enough to drive a pipeline's status
// transitions end to end without any real per-step computation.
func DefaultExecutor(def *types.StepDef, parentData []any) (any, error) {
	return parentData, nil
}

// Loop repeatedly polls the coordinator for runnable steps across scopes
// and runs each with exec, reporting done/error back over client while
// reading step definitions and parent data directly from blobs, the same
// direct-blob-store access the reference worker's get_step/get_data use
// (the Blob Store is an external collaborator both sides reach, not
// something proxied through the wire protocol). It sleeps between empty
// polls rather than busy-looping, mirroring the reference worker's work()
// loop. Loop returns when ctx is cancelled.
func Loop(ctx context.Context, client *Client, blobs blobstore.Store, scopes []string, exec StepExecutor) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ids, err := client.GetSteps(scopes)
		if err != nil {
			return err
		}

		if len(ids) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for _, id := range ids {
			runStep(client, blobs, id, exec)
		}
	}
}

// runStep fetches a step's definition and its parents' data, runs exec,
// stores the result, and reports the outcome. Any error from fetching or
// executing is reported via the error RPC rather than propagated, matching
// the reference worker's job()'s broad except-and-report-error behavior.
// Parent ids come from the definition blob itself, the only copy of a
// step's parents a worker needs: get-steps returns bare ids, not full
// Step Records.
func runStep(client *Client, blobs blobstore.Store, stepID string, exec StepExecutor) {
	def, err := blobstore.GetStepDef(blobs, stepID)
	if err != nil {
		_ = client.Error(stepID, err.Error(), "")
		return
	}

	parentData := make([]any, 0, len(def.Parents))
	for _, pid := range def.Parents {
		data, err := blobstore.GetStepData(blobs, pid)
		if err != nil {
			_ = client.Error(stepID, err.Error(), "")
			return
		}
		parentData = append(parentData, data)
	}

	result, err := exec(def, parentData)
	if err != nil {
		_ = client.Error(stepID, err.Error(), "")
		return
	}

	if err := blobstore.SetStepData(blobs, stepID, result); err != nil {
		_ = client.Error(stepID, err.Error(), "")
		return
	}

	_ = client.Done(stepID)
}
