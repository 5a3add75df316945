package status_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/clothsim/internal/status"
)

var _ = Describe("Graph", func() {
	var (
		g     *status.Graph
		cloth status.NodeID
		mesh  status.NodeID
		rend  status.NodeID
	)

	ready := func(ids ...status.NodeID) {
		for _, id := range ids {
			Expect(g.SetInit(id, status.InitComplete)).To(Succeed())
		}
	}

	BeforeEach(func() {
		g = status.NewGraph()
		cloth = g.Add("cloth", nil)
		mesh = g.Add("mesh", nil)
		rend = g.Add("render", nil)
		Expect(g.Link(cloth, mesh)).To(Succeed())
		Expect(g.Link(mesh, rend)).To(Succeed())
	})

	It("keeps uninitialized nodes inactive", func() {
		g.Update()
		Expect(g.Active(cloth)).To(BeFalse())
	})

	It("activates a chain once every node is ready", func() {
		ready(cloth, mesh, rend)
		changed := g.Update()
		Expect(changed).To(ConsistOf(cloth, mesh, rend))
		Expect(g.Active(rend)).To(BeTrue())
	})

	It("propagates a disabled parent to its descendants", func() {
		ready(cloth, mesh, rend)
		g.Update()

		Expect(g.SetEnable(cloth, false)).To(Succeed())
		g.Update()
		Expect(g.Active(mesh)).To(BeFalse())
		Expect(g.Active(rend)).To(BeFalse())

		Expect(g.SetEnable(cloth, true)).To(Succeed())
		g.Update()
		Expect(g.Active(rend)).To(BeTrue())
	})

	It("stays active while any parent is active", func() {
		other := g.Add("other cloth", nil)
		Expect(g.Link(other, mesh)).To(Succeed())
		ready(cloth, mesh, rend, other)
		Expect(g.SetEnable(cloth, false)).To(Succeed())
		g.Update()
		Expect(g.Active(mesh)).To(BeTrue())
	})

	It("treats InitError as permanent", func() {
		Expect(g.SetInit(cloth, status.InitError)).To(Succeed())
		Expect(g.SetInit(cloth, status.InitComplete)).To(Succeed())
		s, err := g.Status(cloth)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Init).To(Equal(status.InitError))
	})

	It("deactivates on runtime error without touching init state", func() {
		ready(cloth, mesh, rend)
		g.Update()
		Expect(g.SetRuntimeError(mesh, true)).To(Succeed())
		g.Update()
		Expect(g.Active(mesh)).To(BeFalse())
		Expect(g.Active(rend)).To(BeFalse())
		Expect(g.Active(cloth)).To(BeTrue())
	})

	It("rejects cycles", func() {
		Expect(g.Link(rend, cloth)).To(MatchError(status.ErrCycle))
		Expect(g.Link(cloth, cloth)).To(MatchError(status.ErrCycle))
	})

	It("reports change callbacks", func() {
		var seen []bool
		n := g.Add("watched", func(active bool) { seen = append(seen, active) })
		ready(n)
		g.Update()
		Expect(g.SetEnable(n, false)).To(Succeed())
		g.Update()
		Expect(seen).To(Equal([]bool{true, false}))
	})

	It("collects nodes whose last link is severed", func() {
		g.Unlink(mesh, rend)
		Expect(g.Collect()).To(Equal([]status.NodeID{rend}))
		Expect(g.Len()).To(Equal(2))

		g.Remove(cloth)
		Expect(g.Collect()).To(Equal([]status.NodeID{mesh}))
		Expect(g.Len()).To(BeZero())
		Expect(g.Collect()).To(BeEmpty())
	})

	It("cascades through children that lose their last parent", func() {
		g.Remove(cloth)
		Expect(g.Collect()).To(Equal([]status.NodeID{mesh, rend}))
		Expect(g.Len()).To(BeZero())
	})

	It("keeps a child that still has another parent", func() {
		other := g.Add("other cloth", nil)
		Expect(g.Link(other, mesh)).To(Succeed())
		g.Remove(cloth)
		Expect(g.Collect()).To(BeEmpty())
		s, err := g.Status(mesh)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Parents).To(Equal(1))
	})

	It("collects a root that loses its last child", func() {
		g.Unlink(cloth, mesh)
		Expect(g.Collect()).To(Equal([]status.NodeID{cloth, mesh, rend}))
	})

	It("never collects nodes that were never linked", func() {
		g.Add("loose", nil)
		Expect(g.Collect()).To(BeEmpty())
	})

	It("returns ErrUnknownNode for removed nodes", func() {
		g.Remove(rend)
		_, err := g.Status(rend)
		Expect(err).To(MatchError(status.ErrUnknownNode))
	})
})
