package report

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/earscope/internal/log"
	"github.com/l3aro/earscope/internal/testutil/classgen"
	"github.com/l3aro/earscope/pkg/archive"
	"github.com/l3aro/earscope/pkg/cache"
	"github.com/l3aro/earscope/pkg/inspector"
	"github.com/l3aro/earscope/pkg/types"
)

const applicationXML = `<?xml version="1.0" encoding="UTF-8"?>
<application xmlns="http://java.sun.com/xml/ns/javaee" version="6">
  <display-name>shop</display-name>
  <module>
    <web>
      <web-uri>shop-web.war</web-uri>
      <context-root>/shop</context-root>
    </web>
  </module>
  <module>
    <ejb>shop-ejb.jar</ejb>
  </module>
</application>
`

const webXML = `<?xml version="1.0" encoding="UTF-8"?>
<web-app xmlns="http://xmlns.jcp.org/xml/ns/javaee" version="3.1">
  <servlet>
    <servlet-name>OrderController</servlet-name>
    <servlet-class>com.acme.web.OrderController</servlet-class>
  </servlet>
  <servlet-mapping>
    <servlet-name>OrderController</servlet-name>
    <url-pattern>/orders</url-pattern>
  </servlet-mapping>
</web-app>
`

const ejbJarXML = `<?xml version="1.0" encoding="UTF-8"?>
<ejb-jar xmlns="http://java.sun.com/xml/ns/javaee" version="3.1">
  <enterprise-beans>
    <session>
      <ejb-name>OrderService</ejb-name>
      <business-local>com.acme.ejb.OrderService</business-local>
      <ejb-class>com.acme.ejb.OrderServiceBean</ejb-class>
      <session-type>Stateless</session-type>
    </session>
  </enterprise-beans>
</ejb-jar>
`

func orderControllerClass() []byte {
	return classgen.New("com/acme/web/OrderController", "javax/servlet/http/HttpServlet").
		Method(classgen.Public, "<init>", "()V").
		Method(classgen.Protected, "doGet", "(Ljavax/servlet/http/HttpServletRequest;Ljavax/servlet/http/HttpServletResponse;)V",
			classgen.Ldc("java:comp/env/jms/OrderQueue"),
			classgen.InvokeInterface("com/acme/ejb/OrderService", "placeOrder", "(Ljava/lang/String;)V"),
		).
		Bytes()
}

func orderServiceBeanClass(annotated bool) []byte {
	b := classgen.New("com/acme/ejb/OrderServiceBean", "").
		Implements("com/acme/ejb/OrderService").
		Method(classgen.Public, "<init>", "()V").
		Method(classgen.Public, "placeOrder", "(Ljava/lang/String;)V",
			classgen.Ldc("java:comp/env/jdbc/OrdersDS"),
		)
	if annotated {
		b.Annotation("Ljavax/ejb/Stateless;")
	}
	return b.Bytes()
}

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func webModule(t *testing.T, descriptor string) []byte {
	return zipBytes(t, map[string][]byte{
		"WEB-INF/web.xml": []byte(descriptor),
		"WEB-INF/classes/com/acme/web/OrderController.class": orderControllerClass(),
		"index.jsp": []byte("<html></html>"),
	})
}

func ejbModule(t *testing.T) []byte {
	return zipBytes(t, map[string][]byte{
		"META-INF/ejb-jar.xml":                []byte(ejbJarXML),
		"com/acme/ejb/OrderServiceBean.class": orderServiceBeanClass(false),
		"META-INF/MANIFEST.MF":                []byte("Manifest-Version: 1.0\n"),
	})
}

func writeArchive(t *testing.T, name string, files map[string][]byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, zipBytes(t, files), 0644))
	return p
}

func shopArchive(t *testing.T) string {
	return writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(applicationXML),
		"shop-web.war":             webModule(t, webXML),
		"shop-ejb.jar":             ejbModule(t),
	})
}

func missingJavap(name string) (string, error) {
	return "", errors.New(`exec: "` + name + `": executable file not found in $PATH`)
}

func newAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = t.TempDir()
	}
	if opts.LookPath == nil {
		opts.LookPath = missingJavap
	}
	a, err := New(opts)
	require.NoError(t, err)
	return a
}

func componentNames(m *types.Module) []string {
	var names []string
	for _, c := range m.Components {
		names = append(names, c.Name)
	}
	return names
}

func TestAnalyzeOrderFlow(t *testing.T) {
	a := newAnalyzer(t, Options{Strategy: inspector.StrategyClassfile})

	r, err := a.Analyze(context.Background(), shopArchive(t))
	require.NoError(t, err)

	assert.True(t, r.Archive.DescriptorFound)
	assert.Equal(t, types.EnterpriseArchive, r.Archive.Kind)
	require.Len(t, r.Archive.Modules, 2)
	assert.Len(t, r.Digest, 64)

	web, ok := r.Module("shop-web.war")
	require.True(t, ok)
	assert.Equal(t, types.WebModule, web.Kind)
	assert.Equal(t, "/shop", web.ContextRoot)
	assert.Equal(t, types.StatusOK, web.Inspection)
	assert.Equal(t, []string{"OrderController"}, componentNames(web))
	assert.Equal(t, "/orders", web.Components[0].Path)

	controller, ok := web.Class("com.acme.web.OrderController")
	require.True(t, ok)
	assert.Equal(t, "WEB-INF/classes", controller.Container)
	require.Len(t, controller.Methods, 1)
	assert.Equal(t, "doGet", controller.Methods[0].Name)
	assert.Equal(t, []types.JndiReference{{Name: "java:comp/env/jms/OrderQueue", Namespace: types.JndiCompEnv}}, controller.Jndi)

	ejb, ok := r.Module("shop-ejb.jar")
	require.True(t, ok)
	assert.Equal(t, []string{"OrderService"}, componentNames(ejb))
	require.Len(t, ejb.Classes, 1)

	require.Len(t, r.Edges, 1)
	e := r.Edges[0]
	assert.Equal(t, "OrderController", e.Caller)
	assert.Equal(t, "doGet", e.CallerMethod)
	assert.Equal(t, "OrderService", e.Callee)
	assert.Equal(t, "shop-ejb.jar", e.CalleeModule)
	assert.Equal(t, "placeOrder", e.CalleeMethod)

	require.Len(t, r.Paths, 1)
	assert.Equal(t, "/orders", r.Paths[0].Path)
	assert.Len(t, r.Paths[0].Edges, 1)

	assert.Empty(t, r.AllDiagnostics())
	assert.Equal(t, 2, r.Stats.Modules)
	assert.Equal(t, 2, r.Stats.Components)
	assert.Equal(t, 2, r.Stats.Methods)
	assert.Equal(t, 2, r.Stats.JndiRefs)
}

func TestAnalyzeCallInsideLambda(t *testing.T) {
	controller := classgen.New("com/acme/web/OrderController", "javax/servlet/http/HttpServlet").
		Method(classgen.Protected, "doGet", "(Ljavax/servlet/http/HttpServletRequest;Ljavax/servlet/http/HttpServletResponse;)V").
		Method(classgen.Private|classgen.Synthetic, "lambda$doGet$0", "(Ljava/lang/String;)V",
			classgen.InvokeInterface("com/acme/ejb/OrderService", "placeOrder", "(Ljava/lang/String;)V"),
		).
		Bytes()
	p := writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(applicationXML),
		"shop-web.war": zipBytes(t, map[string][]byte{
			"WEB-INF/web.xml": []byte(webXML),
			"WEB-INF/classes/com/acme/web/OrderController.class": controller,
		}),
		"shop-ejb.jar": ejbModule(t),
	})
	a := newAnalyzer(t, Options{Strategy: inspector.StrategyClassfile})

	r, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, r.Edges, 1)
	assert.Equal(t, "OrderController.doGet -> OrderService.placeOrder", r.Edges[0].String())
}

func TestAnalyzeRemovesScratch(t *testing.T) {
	scratch := t.TempDir()
	a := newAnalyzer(t, Options{ScratchDir: scratch})

	_, err := a.Analyze(context.Background(), shopArchive(t))
	require.NoError(t, err)

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestAnalyzeKeepScratch(t *testing.T) {
	scratch := t.TempDir()
	a := newAnalyzer(t, Options{ScratchDir: scratch, KeepScratch: true})

	r, err := a.Analyze(context.Background(), shopArchive(t))
	require.NoError(t, err)

	web, _ := r.Module("shop-web.war")
	require.NotEmpty(t, web.Path)
	assert.FileExists(t, filepath.Join(web.Path, "WEB-INF", "web.xml"))
}

func TestAnalyzeWithoutApplicationDescriptor(t *testing.T) {
	p := writeArchive(t, "plain.ear", map[string][]byte{
		"README.txt": []byte("nothing declared"),
	})
	a := newAnalyzer(t, Options{})

	r, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)

	assert.False(t, r.Archive.DescriptorFound)
	assert.Empty(t, r.Archive.Modules)
	assert.Empty(t, r.DiagnosticsOf(types.CorruptArchive))
	missing := r.DiagnosticsOf(types.MissingDescriptor)
	require.Len(t, missing, 1)
	assert.Equal(t, types.ArchiveScope, missing[0].Scope)
}

func TestAnalyzeMalformedModuleDescriptor(t *testing.T) {
	p := writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(applicationXML),
		"shop-web.war":             webModule(t, "<web-app><servlet><servlet-name>Broken"),
		"shop-ejb.jar":             ejbModule(t),
	})
	a := newAnalyzer(t, Options{Strategy: inspector.StrategyClassfile})

	r, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)

	web, ok := r.Module("shop-web.war")
	require.True(t, ok)
	assert.Empty(t, web.Components)
	require.Len(t, web.Diagnostics, 1)
	assert.Equal(t, types.MalformedDescriptor, web.Diagnostics[0].Kind)
	assert.Equal(t, "shop-web.war", web.Diagnostics[0].Module)
	assert.Equal(t, "WEB-INF/web.xml", web.Diagnostics[0].Subject)

	// the class inventory does not depend on the descriptor
	assert.Len(t, web.Classes, 1)

	ejb, _ := r.Module("shop-ejb.jar")
	assert.Equal(t, []string{"OrderService"}, componentNames(ejb))
	assert.Empty(t, ejb.Diagnostics)
}

func TestAnalyzeJavapAbsent(t *testing.T) {
	a := newAnalyzer(t, Options{Strategy: inspector.StrategyJavap, LookPath: missingJavap})

	r, err := a.Analyze(context.Background(), shopArchive(t))
	require.NoError(t, err)
	require.Len(t, r.Archive.Modules, 2)

	for _, m := range r.Archive.Modules {
		assert.Equal(t, types.StatusUnavailable, m.Inspection, m.Name)
		require.Len(t, m.Diagnostics, 1, m.Name)
		assert.Equal(t, types.InspectionUnavailable, m.Diagnostics[0].Kind)
		assert.Equal(t, types.ModuleScope, m.Diagnostics[0].Scope)
		for _, c := range m.Classes {
			assert.NotNil(t, c.Methods)
			assert.Empty(t, c.Methods, c.Name)
		}
		assert.Len(t, m.Components, 1, m.Name)
	}
	assert.Empty(t, r.Edges)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	p := shopArchive(t)
	a := newAnalyzer(t, Options{Concurrency: 2})

	first, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, first.Archive, second.Archive)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, first.Paths, second.Paths)
	assert.Equal(t, first.Digest, second.Digest)
}

func TestAnalyzeCorruptArchive(t *testing.T) {
	a := newAnalyzer(t, Options{})

	p := filepath.Join(t.TempDir(), "broken.ear")
	require.NoError(t, os.WriteFile(p, []byte("this is not a zip file"), 0644))

	r, err := a.Analyze(context.Background(), p)
	assert.Nil(t, r)
	assert.True(t, errors.Is(err, archive.ErrCorruptArchive), "got %v", err)

	_, err = a.Analyze(context.Background(), filepath.Join(t.TempDir(), "absent.ear"))
	assert.True(t, errors.Is(err, archive.ErrCorruptArchive), "got %v", err)
}

func TestAnalyzeModuleProblems(t *testing.T) {
	app := `<application xmlns="http://xmlns.jcp.org/xml/ns/javaee">
  <module><ejb>shop-ejb.jar</ejb></module>
  <module><ejb>shop-ejb.jar</ejb></module>
  <module><web><web-uri>gone.war</web-uri></web></module>
  <module><ejb>broken.jar</ejb></module>
</application>`
	p := writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(app),
		"shop-ejb.jar":             ejbModule(t),
		"broken.jar":               []byte("garbage"),
	})
	a := newAnalyzer(t, Options{})

	r, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, r.Archive.Modules, 3)
	assert.Len(t, r.DiagnosticsOf(types.DuplicateModule), 1)

	gone, ok := r.Module("gone.war")
	require.True(t, ok)
	assert.Equal(t, types.StatusSkipped, gone.Inspection)
	require.Len(t, gone.Diagnostics, 1)
	assert.Equal(t, types.MissingModule, gone.Diagnostics[0].Kind)

	broken, ok := r.Module("broken.jar")
	require.True(t, ok)
	assert.Equal(t, types.StatusSkipped, broken.Inspection)
	require.Len(t, broken.Diagnostics, 1)
	assert.Equal(t, types.UnreadableModule, broken.Diagnostics[0].Kind)

	ejb, _ := r.Module("shop-ejb.jar")
	assert.Equal(t, types.StatusOK, ejb.Inspection)
}

func classNames(m *types.Module) []string {
	var names []string
	for _, c := range m.Classes {
		names = append(names, c.Name)
	}
	return names
}

func TestAnalyzeModulesKeepTheirOwnClasses(t *testing.T) {
	app := `<application>
  <module><ejb>a/b.jar</ejb></module>
  <module><ejb>a_b.jar</ejb></module>
</application>`
	p := writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(app),
		"a/b.jar": zipBytes(t, map[string][]byte{
			"com/one/One.class": classgen.New("com/one/One", "").Bytes(),
		}),
		"a_b.jar": zipBytes(t, map[string][]byte{
			"com/two/Two.class": classgen.New("com/two/Two", "").Bytes(),
		}),
	})
	a := newAnalyzer(t, Options{Concurrency: 2})

	r, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, r.Archive.Modules, 2)

	nested, ok := r.Module("a/b.jar")
	require.True(t, ok)
	assert.Equal(t, []string{"com.one.One"}, classNames(nested))

	flat, ok := r.Module("a_b.jar")
	require.True(t, ok)
	assert.Equal(t, []string{"com.two.Two"}, classNames(flat))
}

func TestAnalyzeVendorBindings(t *testing.T) {
	p := writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(applicationXML),
		"shop-web.war": zipBytes(t, map[string][]byte{
			"WEB-INF/web.xml": []byte(webXML),
			"WEB-INF/ibm-web-bnd.xml": []byte(`<web-bnd xmlns="http://websphere.ibm.com/xml/ns/javaee">
  <resource-ref name="jdbc/Orders" binding-name="jdbc/Orders-DS"/>
</web-bnd>`),
			"WEB-INF/classes/com/acme/web/OrderController.class": orderControllerClass(),
		}),
		"shop-ejb.jar": ejbModule(t),
	})
	a := newAnalyzer(t, Options{Strategy: inspector.StrategyClassfile})

	r, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)

	web, ok := r.Module("shop-web.war")
	require.True(t, ok)
	assert.Equal(t, []types.VendorBinding{
		{File: "WEB-INF/ibm-web-bnd.xml", Rule: types.BindingFileEntry, Name: "jdbc/Orders", Value: "jdbc/Orders-DS"},
		{File: "WEB-INF/ibm-web-bnd.xml", Rule: types.DataSourceName, Value: "jdbc/Orders-DS"},
	}, web.Bindings)

	ejb, _ := r.Module("shop-ejb.jar")
	assert.Empty(t, ejb.Bindings)
	assert.Equal(t, 2, r.Stats.Bindings)
	assert.Empty(t, r.AllDiagnostics())
}

func TestAnalyzeAnnotatedBean(t *testing.T) {
	jar := zipBytes(t, map[string][]byte{
		"com/acme/ejb/OrderServiceBean.class": orderServiceBeanClass(true),
	})
	p := writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(applicationXML),
		"shop-web.war":             webModule(t, webXML),
		"shop-ejb.jar":             jar,
	})
	a := newAnalyzer(t, Options{Strategy: inspector.StrategyClassfile})

	r, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)

	ejb, _ := r.Module("shop-ejb.jar")
	require.Len(t, ejb.Components, 1)
	bean := ejb.Components[0]
	assert.Equal(t, "OrderServiceBean", bean.Name)
	assert.Equal(t, types.FromAnnotation, bean.Origin)
	assert.Equal(t, "Stateless", bean.SessionType)
	missing := r.DiagnosticsOf(types.MissingDescriptor)
	require.Len(t, missing, 1)
	assert.Equal(t, "shop-ejb.jar", missing[0].Module)

	// the business interface still links the servlet to the bean
	require.Len(t, r.Edges, 1)
	assert.Equal(t, "OrderServiceBean", r.Edges[0].Callee)
	assert.Equal(t, "OrderService", r.Edges[0].Token)
}

func TestAnalyzeUnresolvedComponent(t *testing.T) {
	war := zipBytes(t, map[string][]byte{
		"WEB-INF/web.xml": []byte(webXML),
	})
	p := writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(applicationXML),
		"shop-web.war":             war,
		"shop-ejb.jar":             ejbModule(t),
	})
	a := newAnalyzer(t, Options{})

	r, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)

	web, _ := r.Module("shop-web.war")
	assert.Equal(t, types.StatusEmpty, web.Inspection)
	unresolved := r.DiagnosticsOf(types.UnresolvedComponent)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "OrderController", unresolved[0].Subject)
	assert.Equal(t, types.ComponentScope, unresolved[0].Scope)
	assert.Empty(t, r.Edges)
}

func TestAnalyzeIncludeLibraries(t *testing.T) {
	helper := classgen.New("com/acme/util/Helper", "").
		Method(classgen.Public|classgen.Static, "format", "(Ljava/lang/String;)Ljava/lang/String;").
		Bytes()
	war := zipBytes(t, map[string][]byte{
		"WEB-INF/web.xml": []byte(webXML),
		"WEB-INF/classes/com/acme/web/OrderController.class": orderControllerClass(),
		"WEB-INF/lib/util.jar": zipBytes(t, map[string][]byte{
			"com/acme/util/Helper.class": helper,
		}),
	})
	p := writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(`<application><module><web><web-uri>shop-web.war</web-uri></web></module></application>`),
		"shop-web.war":             war,
	})

	without := newAnalyzer(t, Options{})
	r, err := without.Analyze(context.Background(), p)
	require.NoError(t, err)
	web, _ := r.Module("shop-web.war")
	assert.Len(t, web.Classes, 1)

	with := newAnalyzer(t, Options{IncludeLibraries: true})
	r, err = with.Analyze(context.Background(), p)
	require.NoError(t, err)
	web, _ = r.Module("shop-web.war")
	require.Len(t, web.Classes, 2)
	helperUnit, ok := web.Class("com.acme.util.Helper")
	require.True(t, ok)
	assert.Equal(t, "WEB-INF/lib/util.jar", helperUnit.Container)
	assert.True(t, helperUnit.HasMethod("format"))
}

func TestAnalyzeExcludes(t *testing.T) {
	a := newAnalyzer(t, Options{Excludes: []string{"com/acme/web/**"}})

	r, err := a.Analyze(context.Background(), shopArchive(t))
	require.NoError(t, err)

	web, _ := r.Module("shop-web.war")
	assert.Empty(t, web.Classes)
	assert.Equal(t, types.StatusEmpty, web.Inspection)
}

func TestAnalyzeSourceBodies(t *testing.T) {
	src := `package com.acme.web;

public class OrderController extends javax.servlet.http.HttpServlet {
    private Audit audit;

    protected void doGet(Object req, Object resp) {
        audit.record("orders");
    }
}
`
	auditBean := classgen.New("com/acme/ejb/AuditBean", "").
		Method(classgen.Public, "record", "(Ljava/lang/String;)V").
		Bytes()
	ejbJar := `<ejb-jar><enterprise-beans><session>
  <ejb-name>Audit</ejb-name><ejb-class>com.acme.ejb.AuditBean</ejb-class>
</session></enterprise-beans></ejb-jar>`

	war := zipBytes(t, map[string][]byte{
		"WEB-INF/web.xml": []byte(webXML),
		"WEB-INF/classes/com/acme/web/OrderController.class": orderControllerClass(),
		"WEB-INF/src/com/acme/web/OrderController.java":      []byte(src),
	})
	jar := zipBytes(t, map[string][]byte{
		"META-INF/ejb-jar.xml":         []byte(ejbJar),
		"com/acme/ejb/AuditBean.class": auditBean,
	})
	p := writeArchive(t, "shop.ear", map[string][]byte{
		"META-INF/application.xml": []byte(applicationXML),
		"shop-web.war":             war,
		"shop-ejb.jar":             jar,
	})
	a := newAnalyzer(t, Options{Strategy: inspector.StrategyClassfile})

	r, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)

	web, _ := r.Module("shop-web.war")
	controller, ok := web.Class("com.acme.web.OrderController")
	require.True(t, ok)
	assert.Equal(t, "source", controller.BodySource)

	// the source body replaces the bytecode one, which only names OrderService
	require.Len(t, r.Edges, 1)
	assert.Equal(t, "OrderController.doGet -> Audit.record", r.Edges[0].String())
}

func TestAnalyzeExplodedArchive(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, data []byte) {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, data, 0644))
	}
	write("META-INF/application.xml", []byte(applicationXML))
	write("shop-web.war/WEB-INF/web.xml", []byte(webXML))
	write("shop-web.war/WEB-INF/classes/com/acme/web/OrderController.class", orderControllerClass())
	write("shop-ejb.jar", ejbModule(t))

	a := newAnalyzer(t, Options{})
	r, err := a.Analyze(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, types.ContainerArchive, r.Archive.Kind)
	assert.Empty(t, r.Digest)
	require.Len(t, r.Archive.Modules, 2)
	assert.Len(t, r.Edges, 1)
}

func TestAnalyzeUsesCache(t *testing.T) {
	store, err := cache.NewResultStore(cache.StoreOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	a := newAnalyzer(t, Options{Cache: store, Now: func() time.Time { return now }})
	p := shopArchive(t)

	first, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Stats().MissCount)

	second, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Stats().HitCount)
	assert.Equal(t, first.Edges, second.Edges)
	assert.True(t, second.AnalyzedAt.Equal(now))
}

func TestAnalyzeCacheHitReportsRequestedPath(t *testing.T) {
	store, err := cache.NewResultStore(cache.StoreOptions{})
	require.NoError(t, err)
	a := newAnalyzer(t, Options{Cache: store})

	p := shopArchive(t)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	renamed := filepath.Join(t.TempDir(), "shop-copy.ear")
	require.NoError(t, os.WriteFile(renamed, data, 0644))

	first, err := a.Analyze(context.Background(), p)
	require.NoError(t, err)
	first.Edges = nil

	second, err := a.Analyze(context.Background(), renamed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Stats().HitCount)
	assert.Equal(t, renamed, second.Archive.Path)
	assert.Len(t, second.Edges, 1)
}

func TestAnalyzeDoesNotCacheUnavailableInspection(t *testing.T) {
	store, err := cache.NewResultStore(cache.StoreOptions{})
	require.NoError(t, err)
	a := newAnalyzer(t, Options{Strategy: inspector.StrategyJavap, Cache: store})
	p := shopArchive(t)

	_, err = a.Analyze(context.Background(), p)
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, int64(0), store.Stats().HitCount)
	assert.Equal(t, 0, store.Stats().Length)
}

func TestAnalyzeCancelled(t *testing.T) {
	a := newAnalyzer(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, shopArchive(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	_, err := New(Options{Strategy: "procyon", Logger: log.Discard()})
	assert.Error(t, err)
}

func TestSortDiagnostics(t *testing.T) {
	ds := []types.Diagnostic{
		{Module: "b.jar", Kind: types.UnreadableClassEntry, Subject: "z.class"},
		{Module: "a.war", Kind: types.UnresolvedComponent, Subject: "Faces"},
		{Module: "b.jar", Kind: types.UnreadableClassEntry, Subject: "a.class"},
		{Module: "a.war", Kind: types.MalformedDescriptor, Subject: "WEB-INF/web.xml"},
	}
	sortDiagnostics(ds)

	var got []string
	for _, d := range ds {
		got = append(got, d.Module+" "+d.Subject)
	}
	assert.Equal(t, []string{"a.war WEB-INF/web.xml", "a.war Faces", "b.jar a.class", "b.jar z.class"}, got)
}
