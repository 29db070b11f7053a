package store_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/telemetry-store/internal/store"
)

var _ = Describe("Models", func() {
	Describe("Record", func() {
		Context("table name", func() {
			It("should return records", func() {
				record := store.Record{}
				Expect(record.TableName()).To(Equal("records"))
			})
		})

		Context("struct initialization", func() {
			It("should initialize with zero values", func() {
				record := store.Record{}
				Expect(record.ID).To(BeZero())
				Expect(record.CreatedAt).To(BeZero())
				Expect(record.Project).To(BeEmpty())
				Expect(record.Payload).To(BeEmpty())
			})

			It("should allow setting values", func() {
				record := store.Record{
					Project: "smart-buoy",
					Payload: `{"S1": {"value": "1.00 ppm", "timestamp": "2024-01-01 10:00:00"}}`,
				}

				Expect(record.Project).To(Equal("smart-buoy"))
				Expect(record.Payload).To(ContainSubstring("1.00 ppm"))
			})
		})
	})

	Describe("DefaultProject", func() {
		It("should be the unknown sentinel", func() {
			Expect(store.DefaultProject).To(Equal("unknown"))
		})
	})
})
