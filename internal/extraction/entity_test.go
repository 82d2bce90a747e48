package extraction

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubRecognizer struct {
	entities []Entity
	err      error
	panics   bool
	calls    atomic.Int32
}

func (s *stubRecognizer) Recognize(string) ([]Entity, error) {
	s.calls.Add(1)
	if s.panics {
		panic("inference blew up")
	}
	return s.entities, s.err
}

var _ = Describe("Model", func() {
	var (
		loads  atomic.Int32
		rec    *stubRecognizer
		loadFn Loader
	)

	BeforeEach(func() {
		loads.Store(0)
		rec = &stubRecognizer{}
		loadFn = func() (Recognizer, error) {
			loads.Add(1)
			time.Sleep(10 * time.Millisecond)
			return rec, nil
		}
	})

	It("loads once under concurrent first use", func() {
		m := NewModel(loadFn, 0)

		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				got, err := m.Get()
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(BeIdenticalTo(rec))
			}()
		}
		wg.Wait()

		Expect(loads.Load()).To(Equal(int32(1)))
	})

	When("loading fails", func() {
		var m *Model

		BeforeEach(func() {
			m = NewModel(func() (Recognizer, error) {
				loads.Add(1)
				return nil, errors.New("weights missing")
			}, 0)
		})

		It("reports the model as unavailable", func() {
			_, err := m.Get()
			Expect(err).To(MatchError(ErrModelUnavailable))
		})

		It("does not try again", func() {
			_, _ = m.Get()
			_, _ = m.Get()
			_, _ = m.Get()
			Expect(loads.Load()).To(Equal(int32(1)))
		})
	})

	When("loading panics", func() {
		It("treats it as unavailable", func() {
			m := NewModel(func() (Recognizer, error) { panic("bad weights") }, 0)
			_, err := m.Get()
			Expect(err).To(MatchError(ErrModelUnavailable))
		})
	})

	When("a retry interval is set", func() {
		var (
			m     *Model
			clock time.Time
		)

		BeforeEach(func() {
			clock = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
			m = NewModel(func() (Recognizer, error) {
				loads.Add(1)
				return nil, errors.New("offline")
			}, time.Minute)
			m.now = func() time.Time { return clock }
		})

		It("waits out the interval before probing again", func() {
			_, _ = m.Get()
			_, _ = m.Get()
			Expect(loads.Load()).To(Equal(int32(1)))

			clock = clock.Add(2 * time.Minute)
			_, _ = m.Get()
			Expect(loads.Load()).To(Equal(int32(2)))
		})
	})
})

var _ = Describe("EntityVendor", func() {
	var (
		rec    *stubRecognizer
		loads  atomic.Int32
		vendor *EntityVendor
		text   string
		name   string
	)

	BeforeEach(func() {
		loads.Store(0)
		rec = &stubRecognizer{}
		vendor = NewEntityVendor(NewModel(func() (Recognizer, error) {
			loads.Add(1)
			return rec, nil
		}, 0))
		text = "WALMART SUPERCENTER STORE 42 BENTONVILLE AR"
	})

	JustBeforeEach(func() {
		name = vendor.Vendor(text)
	})

	When("the text is too short", func() {
		BeforeEach(func() {
			text = "Walmart 42"
		})

		It("returns nothing without loading the model", func() {
			Expect(name).To(BeEmpty())
			Expect(loads.Load()).To(BeZero())
		})
	})

	When("several organizations are found", func() {
		BeforeEach(func() {
			rec.entities = []Entity{
				{Text: "Walmart Supercenter Store 42", Label: "ORG"},
				{Text: "Walmart", Label: "ORG"},
				{Text: "Jane", Label: "PERSON"},
				{Text: "AR", Label: "ORG"},
				{Text: "Bentonville", Label: "GPE"},
			}
		})

		It("prefers the shortest organization longer than two characters", func() {
			Expect(name).To(Equal("Walmart"))
		})
	})

	When("organizations tie on length", func() {
		BeforeEach(func() {
			rec.entities = []Entity{
				{Text: "Acme", Label: "organization"},
				{Text: "Beta", Label: "ORG"},
			}
		})

		It("keeps the first one", func() {
			Expect(name).To(Equal("Acme"))
		})
	})

	When("recognition fails", func() {
		BeforeEach(func() {
			rec.err = errors.New("inference failed")
		})

		It("returns nothing", func() {
			Expect(name).To(BeEmpty())
		})
	})

	When("recognition panics", func() {
		BeforeEach(func() {
			rec.panics = true
		})

		It("returns nothing", func() {
			Expect(name).To(BeEmpty())
		})
	})

	When("the model cannot load", func() {
		BeforeEach(func() {
			vendor = NewEntityVendor(NewModel(func() (Recognizer, error) {
				loads.Add(1)
				return nil, errors.New("missing")
			}, 0))
		})

		It("returns nothing and remembers the failure", func() {
			Expect(name).To(BeEmpty())
			Expect(vendor.Vendor(text)).To(BeEmpty())
			Expect(loads.Load()).To(Equal(int32(1)))
		})
	})
})
