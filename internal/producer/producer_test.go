package producer_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/telemetry-store/internal/producer"
	"procodus.dev/telemetry-store/pkg/generator"
	"procodus.dev/telemetry-store/pkg/mq"
	"procodus.dev/telemetry-store/pkg/mq/mock"
)

var _ = Describe("Producer", func() {
	var (
		mqClient mq.ClientInterface
	)

	Describe("NewProducer", func() {
		BeforeEach(func() {
			mqClient = mock.NewMockClient()
		})

		It("should create a producer with a valid MQ client", func() {
			prod := producer.NewProducer(mqClient)
			Expect(prod).NotTo(BeNil())
		})

		It("should create a producer with stations", func() {
			prod := producer.NewProducer(mqClient)
			Expect(prod.Stations).NotTo(BeEmpty())
			Expect(len(prod.Stations)).To(BeNumerically(">=", 1))
			Expect(len(prod.Stations)).To(BeNumerically("<=", 3))
		})

		It("should create a producer with the provided MQ client", func() {
			prod := producer.NewProducer(mqClient)
			Expect(prod.MQClient).To(Equal(mqClient))
		})

		It("should create different station sets on multiple calls", func() {
			prod1 := producer.NewProducer(mqClient)
			prod2 := producer.NewProducer(mqClient)

			// At least one station should differ (highly likely with UUIDs)
			allSame := true
			if len(prod1.Stations) != len(prod2.Stations) {
				allSame = false
			} else {
				for i := range prod1.Stations {
					if prod1.Stations[i].StationID != prod2.Stations[i].StationID {
						allSame = false
						break
					}
				}
			}
			Expect(allSame).To(BeFalse())
		})
	})

	Describe("RandomDataPoint", func() {
		var prod *producer.Producer

		BeforeEach(func() {
			mqClient = mock.NewMockClient()
			prod = producer.NewProducer(mqClient)
		})

		It("should refuse to run without stations", func() {
			empty := &producer.Producer{MQClient: mock.NewMockClient()}

			err := empty.RandomDataPoint(context.Background())
			Expect(err).To(MatchError(producer.ErrNoStations))
		})

		It("should push one message per call", func() {
			ctx := context.Background()
			Expect(prod.RandomDataPoint(ctx)).To(Succeed())

			mockClient := mqClient.(*mock.MockClient)
			Expect(mockClient.PushCalls).To(HaveLen(1))
			Expect(mockClient.PushCalls[0].Ctx).To(Equal(ctx))
		})

		It("should push a decodable submission", func() {
			Expect(prod.RandomDataPoint(context.Background())).To(Succeed())

			mockClient := mqClient.(*mock.MockClient)
			Expect(mockClient.PushCalls).To(HaveLen(1))

			var submission generator.Submission
			Expect(json.Unmarshal(mockClient.PushCalls[0].Data, &submission)).To(Succeed())
			Expect(submission.Project).NotTo(BeEmpty())
			Expect(submission.Data).NotTo(BeEmpty())
		})

		It("should embed parseable reading timestamps", func() {
			Expect(prod.RandomDataPoint(context.Background())).To(Succeed())

			mockClient := mqClient.(*mock.MockClient)
			var submission generator.Submission
			Expect(json.Unmarshal(mockClient.PushCalls[0].Data, &submission)).To(Succeed())

			var readings map[string]generator.Reading
			Expect(json.Unmarshal([]byte(submission.Data), &readings)).To(Succeed())
			Expect(readings).NotTo(BeEmpty())
			for _, reading := range readings {
				_, err := time.Parse(generator.TimeLayout, reading.Timestamp)
				Expect(err).NotTo(HaveOccurred())
				Expect(reading.Value).NotTo(BeEmpty())
			}
		})

		It("should propagate push failures", func() {
			pushErr := errors.New("broker unavailable")
			failing := &mock.MockClient{PushError: pushErr}
			prod = producer.NewProducer(failing)

			err := prod.RandomDataPoint(context.Background())
			Expect(err).To(MatchError(pushErr))
		})

		It("should keep the station list stable across calls", func() {
			initialCount := len(prod.Stations)

			ctx := context.Background()
			for range 5 {
				Expect(prod.RandomDataPoint(ctx)).To(Succeed())
			}

			Expect(prod.Stations).To(HaveLen(initialCount))

			mockClient := mqClient.(*mock.MockClient)
			Expect(mockClient.PushCalls).To(HaveLen(5))
		})

		It("should handle concurrent calls", func() {
			const calls = 10

			ctx := context.Background()
			var wg sync.WaitGroup
			for range calls {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(prod.RandomDataPoint(ctx)).To(Succeed())
				}()
			}
			wg.Wait()

			mockClient := mqClient.(*mock.MockClient)
			Expect(mockClient.PushCalls).To(HaveLen(calls))
		})
	})
})
