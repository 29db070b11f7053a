package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/telemetry-store/internal/api"
)

type recordResponse struct {
	ID        uint   `json:"id"`
	Timestamp string `json:"timestamp"`
	Project   string `json:"project"`
	Data      string `json:"data"`
}

func postIngest(project, data string) (*http.Response, error) {
	body, err := json.Marshal(map[string]string{
		"project": project,
		"data":    data,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.APIKeyHeader, apiKey)

	return http.DefaultClient.Do(req)
}

func getRecords(query string) ([]recordResponse, int, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/records"+query, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set(api.APIKeyHeader, apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var records []recordResponse
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, resp.StatusCode, err
	}
	return records, resp.StatusCode, nil
}

var _ = Describe("HTTP Ingestion E2E", func() {
	It("should store a submission over HTTP and read it back", func() {
		project := fmt.Sprintf("http-e2e-%d", time.Now().UnixNano())
		payload := `{"S1":{"value":"7.20 pH","timestamp":"2024-06-01 08:30:00"}}`

		resp, err := postIngest(project, payload)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var created struct {
			Message string `json:"message"`
			ID      uint   `json:"id"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
		Expect(created.ID).To(BeNumerically(">", 0))
		Expect(created.Message).To(ContainSubstring("data stored successfully"))

		records, status, err := getRecords("?project=" + project)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))
		Expect(records).To(HaveLen(1))
		Expect(records[0].ID).To(Equal(created.ID))
		Expect(records[0].Project).To(Equal(project))
		Expect(records[0].Data).To(Equal(payload))
	})

	It("should return records newest first with a limit", func() {
		project := fmt.Sprintf("http-order-e2e-%d", time.Now().UnixNano())

		for i := 1; i <= 4; i++ {
			resp, err := postIngest(project, fmt.Sprintf("payload-%d", i))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			_ = resp.Body.Close()
		}

		records, status, err := getRecords("?project=" + project + "&limit=2")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))
		Expect(records).To(HaveLen(2))
		Expect(records[0].Data).To(Equal("payload-4"))
		Expect(records[1].Data).To(Equal("payload-3"))
	})

	It("should reject requests without the shared secret", func() {
		resp, err := http.Post(baseURL+"/ingest", "application/json",
			bytes.NewReader([]byte(`{"project":"p","data":"d"}`)))
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("should reject an empty data field", func() {
		resp, err := postIngest("http-e2e", "")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		var body map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body["error"]).To(Equal("Data field cannot be empty"))
	})
})
