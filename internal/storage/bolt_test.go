package storage

import (
	"context"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ncsverify/verifier-worker/internal/pipeline"
)

var _ = Describe("BoltStore", func() {
	var (
		store *BoltStore
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		store, err = NewBoltStore(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("References", func() {
		var refs *BoltReferenceStore

		BeforeEach(func() {
			refs = store.References()
		})

		Describe("Add", func() {
			It("should assign an ID when none is given", func() {
				ref := &pipeline.ReferenceTemplate{DocType: "coo", Version: "1", ImagePath: "a.png"}
				Expect(refs.Add(ctx, ref)).To(Succeed())
				Expect(ref.ID).NotTo(BeEmpty())
			})

			It("should persist the template", func() {
				ref := &pipeline.ReferenceTemplate{
					ID:        "ref-1",
					DocType:   "coo",
					Version:   "2021",
					Metadata:  map[string]interface{}{"watermark_zones": []interface{}{}},
					ImagePath: "ref-1.png",
				}
				Expect(refs.Add(ctx, ref)).To(Succeed())

				saved, err := refs.Get(ctx, "ref-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(saved.DocType).To(Equal("coo"))
				Expect(saved.Version).To(Equal("2021"))
				Expect(saved.ImagePath).To(Equal("ref-1.png"))
			})
		})

		Describe("Get", func() {
			When("the template does not exist", func() {
				It("should return a not-found error", func() {
					_, err := refs.Get(ctx, "missing")
					Expect(errors.Is(err, pipeline.ErrNotFound)).To(BeTrue())
				})
			})
		})

		Describe("List", func() {
			It("should return templates in enrollment order", func() {
				// IDs chosen to sort lexicographically against insertion
				// order, so a key-ordered scan would fail this.
				ids := []string{"zz-first", "mm-second", "aa-third"}
				for _, id := range ids {
					Expect(refs.Add(ctx, &pipeline.ReferenceTemplate{ID: id, DocType: "coo", Version: "1", ImagePath: id + ".png"})).To(Succeed())
				}

				listed, err := refs.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(listed).To(HaveLen(3))
				for i, id := range ids {
					Expect(listed[i].ID).To(Equal(id))
				}
			})

			It("should return an empty slice for an empty store", func() {
				listed, err := refs.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(listed).To(BeEmpty())
			})
		})
	})

	Describe("Sessions", func() {
		var (
			sessions *BoltSessionStore
			id       string
		)

		BeforeEach(func() {
			sessions = store.Sessions()
			var err error
			id, err = sessions.Create(ctx, "coo")
			Expect(err).NotTo(HaveOccurred())
		})

		Describe("Create", func() {
			It("should start sessions queued at zero percent", func() {
				session, err := sessions.Get(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(session.Stage).To(Equal(pipeline.StageQueued))
				Expect(session.Percent).To(Equal(pipeline.PercentQueued))
				Expect(session.DocType).To(Equal("coo"))
				Expect(session.Result).To(BeNil())
			})
		})

		Describe("UpdateStatus", func() {
			It("should apply stage, percent and message together", func() {
				Expect(sessions.UpdateStatus(ctx, id, pipeline.StageRectifying, pipeline.PercentRectifying, "working")).To(Succeed())

				session, err := sessions.Get(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(session.Stage).To(Equal(pipeline.StageRectifying))
				Expect(session.Percent).To(Equal(pipeline.PercentRectifying))
				Expect(session.Message).To(Equal("working"))
			})

			It("should reject percent regressions", func() {
				Expect(sessions.UpdateStatus(ctx, id, pipeline.StageOCR, pipeline.PercentOCR, "")).To(Succeed())
				err := sessions.UpdateStatus(ctx, id, pipeline.StageRectifying, pipeline.PercentRectifying, "")
				Expect(err).To(HaveOccurred())

				session, _ := sessions.Get(ctx, id)
				Expect(session.Percent).To(Equal(pipeline.PercentOCR))
			})

			It("should reject updates to terminal sessions", func() {
				Expect(sessions.UpdateStatus(ctx, id, pipeline.StageError, pipeline.PercentTerminal, "failed")).To(Succeed())
				err := sessions.UpdateStatus(ctx, id, pipeline.StageRectifying, pipeline.PercentTerminal, "")
				Expect(err).To(HaveOccurred())

				session, _ := sessions.Get(ctx, id)
				Expect(session.Stage).To(Equal(pipeline.StageError))
				Expect(session.Message).To(Equal("failed"))
			})

			It("should fail for unknown sessions", func() {
				err := sessions.UpdateStatus(ctx, "missing", pipeline.StageOCR, pipeline.PercentOCR, "")
				Expect(errors.Is(err, pipeline.ErrNotFound)).To(BeTrue())
			})
		})

		Describe("SetResult", func() {
			var result *pipeline.AnalysisResult

			BeforeEach(func() {
				result = &pipeline.AnalysisResult{
					Summary: pipeline.AnalysisSummary{
						MatchScore:     82.5,
						ConfidenceBand: pipeline.BandHigh,
						Disclaimer:     pipeline.Disclaimer,
					},
					OCRText: "CERTIFICATE",
				}
			})

			It("should resolve the session exactly once", func() {
				Expect(sessions.SetResult(ctx, id, result)).To(Succeed())

				session, err := sessions.Get(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(session.Stage).To(Equal(pipeline.StageDone))
				Expect(session.Percent).To(Equal(pipeline.PercentTerminal))
				Expect(session.Result).NotTo(BeNil())
				Expect(session.Result.Summary.MatchScore).To(Equal(82.5))

				Expect(sessions.SetResult(ctx, id, result)).NotTo(Succeed())
			})

			It("should reject a result on an errored session", func() {
				Expect(sessions.UpdateStatus(ctx, id, pipeline.StageError, pipeline.PercentTerminal, "failed")).To(Succeed())
				Expect(sessions.SetResult(ctx, id, result)).NotTo(Succeed())
			})
		})
	})
})
