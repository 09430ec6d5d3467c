package reconcile_test

import (
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adam-stokes/ogc-sub000/internal/inventory"
	"github.com/adam-stokes/ogc-sub000/internal/provider/fake"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/deploy"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/provisioningtest"
	"github.com/adam-stokes/ogc-sub000/internal/provisioning/reconcile"
	ogctest "github.com/adam-stokes/ogc-sub000/internal/testing"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
)

var _ = Describe("Reconciling the web layout", func() {
	var (
		h       *provisioningtest.Harness
		adapter *fake.Adapter
		r       *reconcile.Reconciler
	)

	setup := func(scale int) {
		plan := ogctest.NewPlanBuilder(GinkgoT()).
			WithLayout("web", fake.Name, scale).
			WithScripts("web", map[string]string{
				"a":        "echo a",
				"b":        "echo b",
				"c":        "echo c",
				"teardown": "echo bye",
			}).
			WithArtifacts("web", "/var/log/web").
			Build()
		adapter = fake.New()
		h = provisioningtest.New(GinkgoT(), plan, adapter)
		r = reconcile.New(h.Ctx)
	}

	status := func() reconcile.Count {
		counts, err := r.Status(h.Ctx, h.Ctx.Plan)
		Expect(err).NotTo(HaveOccurred())
		return counts["web"]
	}

	Context("with scale 3 and an empty inventory", func() {
		BeforeEach(func() { setup(3) })

		It("creates exactly three nodes and deploys to each", func() {
			res, err := r.Sync(h.Ctx, "web", reconcile.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Created).To(HaveLen(3))
			Expect(res.Deployed).To(HaveLen(3))
			Expect(adapter.Creates()).To(Equal(3))

			for _, n := range res.Created {
				remote := h.Remotes.Remote(n.Name)
				Expect(remote.Commands()).To(Equal([]string{"'/tmp/ogc/c'", "'/tmp/ogc/b'", "'/tmp/ogc/a'"}))
				_, uploaded := remote.Uploaded(deploy.TeardownPath)
				Expect(uploaded).To(BeTrue())
			}

			Expect(status()).To(Equal(reconcile.Count{Scale: 3, Deployed: 3, Remaining: 0, Action: ""}))
		})

		It("is a no-op the second time", func() {
			_, err := r.Sync(h.Ctx, "web", reconcile.Options{})
			Expect(err).NotTo(HaveOccurred())
			dials := len(h.Remotes.Dialed())

			res, err := r.Sync(h.Ctx, "web", reconcile.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Created).To(BeEmpty())
			Expect(adapter.Creates()).To(Equal(3))
			Expect(h.Remotes.Dialed()).To(HaveLen(dials))
		})

		It("never shrinks a node's action log", func() {
			res, err := r.Sync(h.Ctx, "web", reconcile.Options{})
			Expect(err).NotTo(HaveOccurred())
			node := res.Created[0]

			before, err := h.Store.Get(h.Ctx, node.Name)
			Expect(err).NotTo(HaveOccurred())

			remote := h.Remotes.Remote(node.Name)
			_, err = deploy.NewRunner(h.Ctx).Exec(h.Ctx, remote, before, "uptime")
			Expect(err).NotTo(HaveOccurred())

			after, err := h.Store.Get(h.Ctx, node.Name)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(after.Actions)).To(BeNumerically(">", len(before.Actions)))
			Expect(after.Actions[:len(before.Actions)]).To(Equal(before.Actions))
			Expect(slices.IsSortedFunc(after.Actions, func(a, b inventory.Action) int {
				return a.Timestamp.Compare(b.Timestamp)
			})).To(BeTrue())
		})
	})

	Context("with scale 1 and three recorded nodes", func() {
		var nodes []*inventory.Node

		BeforeEach(func() {
			setup(1)
			nodes = nil
			for _, s := range []struct{ suffix, id string }{{"cc03", "i-3"}, {"aa01", "i-1"}, {"bb02", "i-2"}} {
				l, err := h.Ctx.Layout("web")
				Expect(err).NotTo(HaveOccurred())
				n := &inventory.Node{
					ID:       s.id,
					Name:     naming.InstanceWithSuffix("web", s.suffix),
					Provider: fake.Name,
					State:    inventory.StateRunning,
					Layout:   l,
				}
				Expect(h.Store.Put(h.Ctx, n)).To(Succeed())
				adapter.Seed(n)
				nodes = append(nodes, n)
			}
		})

		It("removes exactly two nodes, chosen by id", func() {
			res, err := r.Sync(h.Ctx, "web", reconcile.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Removed).To(HaveLen(2))

			removed := []string{res.Removed[0].Node, res.Removed[1].Node}
			Expect(removed).To(Equal([]string{nodes[1].Name, nodes[2].Name}))
			Expect(status()).To(Equal(reconcile.Count{Scale: 1, Deployed: 1}))
		})

		It("skips teardown and artifact retrieval", func() {
			res, err := r.Sync(h.Ctx, "web", reconcile.Options{})
			Expect(err).NotTo(HaveOccurred())
			for _, o := range res.Removed {
				Expect(o.TeardownRan).To(BeFalse())
				Expect(o.Artifacts).To(BeEmpty())
			}
			Expect(h.Remotes.Dialed()).To(BeEmpty())
		})

		It("still forgets a node the provider already lost", func() {
			adapter.Forget(nodes[1].Name)

			res, err := r.Sync(h.Ctx, "web", reconcile.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Removed).To(HaveLen(2))
			Expect(res.Removed[0].Existed).To(BeFalse())

			_, err = h.Store.Get(h.Ctx, nodes[1].Name)
			Expect(err).To(MatchError(inventory.ErrNotFound))
			Expect(status().Remaining).To(BeZero())
		})
	})
})
