package store_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"procodus.dev/telemetry-store/internal/store"
)

var _ = Describe("Store", func() {
	var (
		logger *slog.Logger
		db     *gorm.DB
		st     *store.Store
		ctx    context.Context
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		ctx = context.Background()

		var err error
		db, err = store.NewDB(&store.DBConfig{
			Logger: logger,
			Dir:    GinkgoT().TempDir(),
		})
		Expect(err).NotTo(HaveOccurred())

		st, err = store.NewStore(logger, db, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(store.CloseDB(db, logger)).To(Succeed())
	})

	rowCount := func() int64 {
		var count int64
		Expect(db.Model(&store.Record{}).Count(&count).Error).To(Succeed())
		return count
	}

	Describe("NewStore", func() {
		It("should return error when logger is nil", func() {
			s, err := store.NewStore(nil, db, nil)
			Expect(err).To(HaveOccurred())
			Expect(s).To(BeNil())
		})

		It("should return error when database is nil", func() {
			s, err := store.NewStore(logger, nil, nil)
			Expect(err).To(HaveOccurred())
			Expect(s).To(BeNil())
		})
	})

	Describe("Insert", func() {
		It("should assign strictly increasing ids", func() {
			var lastID uint
			for range 5 {
				record, err := st.Insert(ctx, "smart-buoy", "payload")
				Expect(err).NotTo(HaveOccurred())
				Expect(record.ID).To(BeNumerically(">", lastID))
				lastID = record.ID
			}
		})

		It("should reject an empty payload without appending a row", func() {
			before := rowCount()

			record, err := st.Insert(ctx, "smart-buoy", "")
			Expect(err).To(MatchError(store.ErrEmptyPayload))
			Expect(record).To(BeNil())
			Expect(rowCount()).To(Equal(before))
		})

		It("should substitute the default project when none is given", func() {
			record, err := st.Insert(ctx, "", "payload")
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Project).To(Equal(store.DefaultProject))
		})

		It("should keep the project label as given, case included", func() {
			record, err := st.Insert(ctx, "Smart-Buoy", "payload")
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Project).To(Equal("Smart-Buoy"))
		})

		It("should assign a creation time eight hours ahead of UTC", func() {
			record, err := st.Insert(ctx, "smart-buoy", "payload")
			Expect(err).NotTo(HaveOccurred())
			Expect(record.CreatedAt).NotTo(BeZero())

			// The offset is applied once, at write time.
			ahead := record.CreatedAt.Sub(time.Now().UTC())
			Expect(ahead).To(BeNumerically("~", 8*time.Hour, time.Minute))
		})

		It("should keep ids strictly increasing across a reopen", func() {
			dir := GinkgoT().TempDir()

			firstDB, err := store.NewDB(&store.DBConfig{Logger: logger, Dir: dir})
			Expect(err).NotTo(HaveOccurred())
			firstStore, err := store.NewStore(logger, firstDB, nil)
			Expect(err).NotTo(HaveOccurred())

			first, err := firstStore.Insert(ctx, "smart-buoy", "before restart")
			Expect(err).NotTo(HaveOccurred())
			Expect(store.CloseDB(firstDB, logger)).To(Succeed())

			secondDB, err := store.NewDB(&store.DBConfig{Logger: logger, Dir: dir})
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				Expect(store.CloseDB(secondDB, logger)).To(Succeed())
			}()
			secondStore, err := store.NewStore(logger, secondDB, nil)
			Expect(err).NotTo(HaveOccurred())

			second, err := secondStore.Insert(ctx, "smart-buoy", "after restart")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(BeNumerically(">", first.ID))
		})

		It("should store non-mapping payloads verbatim", func() {
			payload := "free-form text, not JSON at all"

			record, err := st.Insert(ctx, "smart-buoy", payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Payload).To(Equal(payload))

			records, err := st.Query(ctx, store.Filter{Project: "smart-buoy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Payload).To(Equal(payload))
		})

		It("should round-trip embedded timestamps exactly", func() {
			payload := `{"S1": {"value": "1.00 ppm", "timestamp": "2024-01-01 10:00:00"}}`

			record, err := st.Insert(ctx, "smart-buoy", payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Payload).To(ContainSubstring(`"timestamp":"2024-01-01 10:00:00"`))
		})

		It("should store payloads with malformed timestamps verbatim", func() {
			payload := `{"S1": {"value": "x", "timestamp": "not-a-date"}}`

			record, err := st.Insert(ctx, "smart-buoy", payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.Payload).To(Equal(payload))
		})

		It("should survive concurrent writers without losing or duplicating ids", func() {
			const writers = 10

			ids := make(chan uint, writers)
			var wg sync.WaitGroup
			for range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()

					record, err := st.Insert(ctx, "smart-buoy", "payload")
					Expect(err).NotTo(HaveOccurred())
					ids <- record.ID
				}()
			}
			wg.Wait()
			close(ids)

			seen := map[uint]bool{}
			for id := range ids {
				Expect(seen[id]).To(BeFalse())
				seen[id] = true
			}
			Expect(seen).To(HaveLen(writers))
			Expect(rowCount()).To(Equal(int64(writers)))
		})
	})

	Describe("Query", func() {
		It("should return an empty result when nothing matches", func() {
			records, err := st.Query(ctx, store.Filter{Project: "nothing-here"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("should filter by exact project label", func() {
			for _, project := range []string{"a", "b", "a", "b", "a"} {
				_, err := st.Insert(ctx, project, "payload")
				Expect(err).NotTo(HaveOccurred())
			}

			records, err := st.Query(ctx, store.Filter{Project: "a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			for _, record := range records {
				Expect(record.Project).To(Equal("a"))
			}
		})

		It("should match projects case-sensitively", func() {
			_, err := st.Insert(ctx, "Alpha", "payload")
			Expect(err).NotTo(HaveOccurred())

			records, err := st.Query(ctx, store.Filter{Project: "alpha"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("should return everything when no filter is given", func() {
			for _, project := range []string{"a", "b", "c"} {
				_, err := st.Insert(ctx, project, "payload")
				Expect(err).NotTo(HaveOccurred())
			}

			records, err := st.Query(ctx, store.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
		})

		It("should order records newest first", func() {
			base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
			for i := range 3 {
				seed := store.Record{
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
					Project:   "smart-buoy",
					Payload:   "payload",
				}
				Expect(db.Create(&seed).Error).To(Succeed())
			}

			records, err := st.Query(ctx, store.Filter{Project: "smart-buoy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			for i := 1; i < len(records); i++ {
				Expect(records[i].CreatedAt.Before(records[i-1].CreatedAt)).To(BeTrue())
			}
		})

		It("should break creation-time ties by descending id", func() {
			at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
			for range 4 {
				seed := store.Record{
					CreatedAt: at,
					Project:   "smart-buoy",
					Payload:   "payload",
				}
				Expect(db.Create(&seed).Error).To(Succeed())
			}

			records, err := st.Query(ctx, store.Filter{Project: "smart-buoy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(4))
			for i := 1; i < len(records); i++ {
				Expect(records[i].ID).To(BeNumerically("<", records[i-1].ID))
			}
		})

		It("should cap results at the limit, keeping the most recent", func() {
			base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
			for i := range 5 {
				seed := store.Record{
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
					Project:   "smart-buoy",
					Payload:   "payload",
				}
				Expect(db.Create(&seed).Error).To(Succeed())
			}

			records, err := st.Query(ctx, store.Filter{Project: "smart-buoy", Limit: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))

			Expect(records[0].CreatedAt.Unix()).To(Equal(base.Add(4 * time.Minute).Unix()))
			Expect(records[2].CreatedAt.Unix()).To(Equal(base.Add(2 * time.Minute).Unix()))
		})
	})
})
