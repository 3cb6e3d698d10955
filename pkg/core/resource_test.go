package core

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResourcePool", func() {
	It("should link, cancel and release", func() {
		pool := NewResourcePool()
		ch1 := make(chan struct{}, 1)
		ch2 := make(chan struct{}, 1)
		r1 := NewResource("r1", func() {
			ch1 <- struct{}{}
		}).(*resource)
		r2 := NewResource("r2", func() {
			ch2 <- struct{}{}
		}).(*resource)
		pool.Insert(r1)
		pool.Insert(r2)

		Expect(pool.Len()).To(Equal(2))
		Expect(pool.tail).To(Equal(r2.n))
		Expect(r2.n.prev).To(Equal(r1.n))
		Expect(r2.n.next).To(BeNil())
		Expect(r1.n.prev).To(BeNil())
		Expect(r1.n.next).To(Equal(r2.n))

		var names []string
		pool.ForEach(func(r Resource) {
			names = append(names, r.Name())
		})
		Expect(names).To(Equal([]string{"r1", "r2"}))

		r1.Cancel()
		Expect(pool.Len()).To(Equal(1))
		Expect(r1.Released()).To(BeFalse())
		names = nil
		pool.ForEach(func(r Resource) {
			names = append(names, r.Name())
		})
		Expect(names).To(Equal([]string{"r2"}))

		Expect(r2.Release()).To(BeTrue())
		Expect(r2.Release()).To(BeFalse())
		Expect(ch2).To(HaveLen(1))
		Expect(pool.Len()).To(Equal(0))
		Expect(pool.tail).To(BeNil())
	})

	It("should allow releasing while iterating", func() {
		pool := NewResourcePool()
		count := 0
		for i := 0; i < 10; i++ {
			pool.Insert(NewResource("r", func() {
				count++
			}))
		}
		pool.ForEach(func(r Resource) {
			r.Release()
		})
		Expect(count).To(Equal(10))
		Expect(pool.Len()).To(Equal(0))
	})

	It("should run the after release callback", func() {
		after := false
		r := NewResource("r", func() {}, func() {
			after = true
		})
		Expect(r.Release()).To(BeTrue())
		Expect(after).To(BeTrue())
	})
})
