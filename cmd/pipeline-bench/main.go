// Command pipeline-bench drives intakes through the whole workflow over the
// HTTP API and writes the latency of every request to a CSV file.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ahmadzakiakmal/dossierflow/client"
)

// Operators created by the server seed
const (
	archivistID       = "OPR-001"
	processingAgentID = "OPR-002"
	stockManagerID    = "OPR-003"
	scanOperatorID    = "OPR-004"
	indexingAgentID   = "OPR-005"
)

type RequestResult struct {
	Step     string
	Method   string
	Endpoint string
	Status   int
	Latency  time.Duration
}

type entity struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	State   string `json:"state"`
	Folders []struct {
		ID string `json:"id"`
	} `json:"folders"`
}

type bench struct {
	client  *client.HTTPClient
	results []RequestResult
}

// call performs one request, records its latency under endpoint and decodes the body into out
func (b *bench) call(step, method, endpoint, path string, body any, operatorID string, out any) error {
	resp, err := b.client.Call(method, path, body, b.client.As(operatorID))
	if resp != nil {
		b.results = append(b.results, RequestResult{
			Step:     step,
			Method:   method,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Latency:  resp.Latency,
		})
	}
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if out != nil {
		return client.UnmarshalBody(resp, out)
	}
	return nil
}

// runStage finishes, quality-checks and validates a stage record
func (b *bench) runStage(collection, id, operatorID string) error {
	for _, action := range []string{"finish", "quality", "validate"} {
		endpoint := "/api/" + collection + "/:id/" + action
		path := "/api/" + collection + "/" + id + "/" + action
		if err := b.call(collection+" "+action, http.MethodPost, endpoint, path, nil, operatorID, nil); err != nil {
			return err
		}
	}
	return nil
}

func (b *bench) runPipeline(folders int, method string) error {
	var intake entity
	err := b.call("Create Intake", http.MethodPost, "/api/intakes", "/api/intakes", map[string]any{
		"delivery_slip":    fmt.Sprintf("BL-%d", time.Now().UnixNano()),
		"declared_count":   folders,
		"start_processing": true,
	}, archivistID, &intake)
	if err != nil {
		return err
	}
	fmt.Printf("Intake %s with %d folders\n", intake.Number, len(intake.Folders))

	folderIDs := make([]string, 0, len(intake.Folders))
	for _, f := range intake.Folders {
		folderIDs = append(folderIDs, f.ID)
	}

	for _, id := range folderIDs {
		var rec entity
		err := b.call("Open Processing", http.MethodPost, "/api/folders/:id/processing", "/api/folders/"+id+"/processing",
			map[string]any{"radical": "RAD001", "agency_code": "AG01", "pieces_processed": 25}, processingAgentID, &rec)
		if err != nil {
			return err
		}
		if err := b.runStage("processing", rec.ID, processingAgentID); err != nil {
			return err
		}
	}

	var carton entity
	capacity := max(folders, 1)
	err = b.call("Create Carton", http.MethodPost, "/api/cartons", "/api/cartons",
		map[string]any{"kind": "loan", "capacity": min(capacity, 200)}, stockManagerID, &carton)
	if err != nil {
		return err
	}
	for _, id := range folderIDs {
		err := b.call("Add To Carton", http.MethodPost, "/api/cartons/:id/folders", "/api/cartons/"+carton.ID+"/folders",
			map[string]any{"folder_id": id}, stockManagerID, nil)
		if err != nil {
			return err
		}
	}
	if err := b.call("Close Carton", http.MethodPost, "/api/cartons/:id/close", "/api/cartons/"+carton.ID+"/close", nil, stockManagerID, nil); err != nil {
		return err
	}

	for _, id := range folderIDs {
		var rec entity
		err := b.call("Open Scan", http.MethodPost, "/api/folders/:id/scan", "/api/folders/"+id+"/scan",
			map[string]any{"kind": "loan", "pieces": 25, "pages": 50}, scanOperatorID, &rec)
		if err != nil {
			return err
		}
		if err := b.runStage("scans", rec.ID, scanOperatorID); err != nil {
			return err
		}
	}

	for _, id := range folderIDs {
		var rec entity
		err := b.call("Open Indexing", http.MethodPost, "/api/folders/:id/indexing", "/api/folders/"+id+"/indexing",
			map[string]any{"title": "Loan agreement", "document_type": "contract", "pieces_indexed": 25, "pages": 50},
			indexingAgentID, &rec)
		if err != nil {
			return err
		}
		if err := b.runStage("indexings", rec.ID, indexingAgentID); err != nil {
			return err
		}
	}

	var delivery entity
	err = b.call("Create Delivery", http.MethodPost, "/api/deliveries", "/api/deliveries",
		map[string]any{"method": method, "folder_ids": folderIDs}, archivistID, &delivery)
	if err != nil {
		return err
	}
	for _, action := range []string{"prepare", "verify-all", "ready", "send", "confirm"} {
		err := b.call("Delivery "+action, http.MethodPost, "/api/deliveries/:id/"+action,
			"/api/deliveries/"+delivery.ID+"/"+action, nil, archivistID, &delivery)
		if err != nil {
			return err
		}
	}
	fmt.Printf("Delivery %s is %s\n", delivery.Number, delivery.State)

	return b.call("KPI Report", http.MethodGet, "/api/kpi", "/api/kpi?period=daily", nil, archivistID, nil)
}

func main() {
	baseURL := flag.String("url", "http://127.0.0.1:5000", "Base URL of the dossierflow server")
	iterations := flag.Int("n", 1, "Number of iterations to run")
	folders := flag.Int("folders", 5, "Folders declared per intake")
	method := flag.String("method", "physical_media", "Delivery method used for the batches")
	flag.Parse()

	filename := fmt.Sprintf("pipeline_n_%d_folders_%d.csv", *iterations, *folders)
	file, err := os.Create(filename)
	if err != nil {
		fmt.Printf("Error creating CSV file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Iteration", "Step", "Method", "Endpoint", "Status", "Latency_ms"}
	if err := writer.Write(header); err != nil {
		fmt.Printf("Error writing CSV header: %v\n", err)
		return
	}

	for i := 0; i < *iterations; i++ {
		fmt.Printf("\n[Iteration %d/%d]\n", i+1, *iterations)
		b := &bench{client: client.NewHTTPClient(*baseURL)}
		start := time.Now()
		if err := b.runPipeline(*folders, *method); err != nil {
			fmt.Printf("Pipeline failed: %v\n", err)
		}
		fmt.Printf("%d requests in %v\n", len(b.results), time.Since(start))

		for _, result := range b.results {
			record := []string{
				strconv.Itoa(i + 1),
				result.Step,
				result.Method,
				result.Endpoint,
				strconv.Itoa(result.Status),
				strconv.FormatFloat(float64(result.Latency.Microseconds())/1000, 'f', 3, 64),
			}
			if err := writer.Write(record); err != nil {
				fmt.Printf("Error writing record to CSV: %v\n", err)
			}
		}
	}

	fmt.Printf("\nBenchmark complete. Results saved to %s\n", filename)
}
