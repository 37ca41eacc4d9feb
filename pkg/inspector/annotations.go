package inspector

import (
	"strings"

	"github.com/l3aro/earscope/pkg/classfile"
	"github.com/l3aro/earscope/pkg/types"
)

// beanAnnotations maps component-defining annotations (without their
// javax./jakarta. prefix) to the bean kind and session type they declare.
var beanAnnotations = map[string]struct {
	kind    types.BeanKind
	session string
}{
	"ejb.Stateless":     {types.SessionBean, "Stateless"},
	"ejb.Stateful":      {types.SessionBean, "Stateful"},
	"ejb.Singleton":     {types.SessionBean, "Singleton"},
	"ejb.MessageDriven": {types.MessageDrivenBean, ""},
}

const webServlet = "servlet.annotation.WebServlet"

func stripEEPrefix(name string) (string, bool) {
	for _, prefix := range []string{"javax.", "jakarta."} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix), true
		}
	}
	return "", false
}

// AnnotatedComponent derives the component a class declares through
// annotations, if any. Beans default to the unqualified class name and
// servlets to the fully-qualified one, as containers do.
func AnnotatedComponent(className string, in *Inspection) (types.ComponentNode, bool) {
	for _, a := range in.Annotations {
		short, ok := stripEEPrefix(a.Type)
		if !ok {
			continue
		}

		if short == webServlet {
			paths := append(append([]string(nil), a.Strings("urlPatterns")...), a.Strings("value")...)
			if len(paths) == 0 {
				continue
			}
			return types.ComponentNode{
				Name:   firstOr(a.Strings("name"), className),
				Kind:   types.EntryPoint,
				Path:   paths[0],
				Paths:  paths,
				Class:  className,
				Origin: types.FromAnnotation,
			}, true
		}

		if bean, ok := beanAnnotations[short]; ok {
			return types.ComponentNode{
				Name:        firstOr(a.Strings("name"), types.SimpleName(className)),
				Kind:        types.Bean,
				BeanKind:    bean.kind,
				SessionType: bean.session,
				Class:       className,
				Interfaces:  types.ApplicationInterfaces(in.Interfaces),
				Origin:      types.FromAnnotation,
			}, true
		}
	}
	return types.ComponentNode{}, false
}

// AnnotationNames returns the dotted type names of the class annotations.
func AnnotationNames(anns []classfile.Annotation) []string {
	if len(anns) == 0 {
		return nil
	}
	names := make([]string, 0, len(anns))
	for _, a := range anns {
		names = append(names, a.Type)
	}
	return names
}

func firstOr(values []string, fallback string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return fallback
}
