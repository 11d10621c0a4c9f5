package graph

import (
	"github.com/emicklei/dot"
)

// DOT renders the graph in Graphviz dot format: subjects point at the
// bindings that name them, bindings point at the roles they grant.
// Namespaced objects are grouped into dashed cluster subgraphs.
func (g *Graph) DOT() *dot.Graph {
	out := dot.NewGraph(dot.Directed)
	out.Attr("newrank", "true")

	for _, subject := range g.Subjects() {
		subjectNode := newSubjectNode(namespaceSubgraph(out, subject.Namespace), subject.Kind, subject.Name)
		for _, grant := range g.RolesForSubject(subject) {
			bindingNode := newBindingNode(namespaceSubgraph(out, grant.Binding.Namespace), grant.Binding.Kind, grant.Binding.Name)
			roleNode := newRoleNode(namespaceSubgraph(out, grant.Role.Namespace), grant.Role.Kind, grant.Role.Namespace, grant.Role.Name)
			edge(subjectNode, bindingNode).Attr("dir", "back")
			edge(bindingNode, roleNode)
		}
	}

	return out
}

func namespaceSubgraph(g *dot.Graph, ns string) *dot.Graph {
	if ns == "" {
		return g
	}
	sub := g.Subgraph(ns, dot.ClusterOption{})
	sub.Attr("style", "dashed")
	return sub
}

func newSubjectNode(g *dot.Graph, kind, name string) dot.Node {
	return g.Node(kind+"-"+name).
		Box().
		Attr("label", name+"\n("+kind+")").
		Attr("style", "filled").
		Attr("fillcolor", "#2f6de1").
		Attr("fontcolor", "#f0f0f0")
}

func newBindingNode(g *dot.Graph, kind, name string) dot.Node {
	shape := "octagon"
	if kind == "ClusterRoleBinding" {
		shape = "doubleoctagon"
	}
	return g.Node("b-"+kind+"/"+name).
		Attr("label", name).
		Attr("shape", shape).
		Attr("style", "filled").
		Attr("fillcolor", "#ffcc00").
		Attr("fontcolor", "#030303")
}

func newRoleNode(g *dot.Graph, kind, namespace, name string) dot.Node {
	shape := "octagon"
	if kind == "ClusterRole" {
		shape = "doubleoctagon"
	}
	return g.Node("r-" + kind + "/" + namespace + "/" + name).
		Attr("label", name).
		Attr("shape", shape).
		Attr("style", "filled").
		Attr("fillcolor", "#ff9900").
		Attr("fontcolor", "#030303")
}

// edge adds an edge between the nodes unless one already exists.
func edge(a, b dot.Node) dot.Edge {
	existing := a.EdgesTo(b)
	if len(existing) > 0 {
		return existing[0]
	}
	return a.Edge(b)
}
