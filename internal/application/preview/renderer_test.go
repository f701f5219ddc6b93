package preview

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaforge-api/internal/config"
	"ideaforge-api/internal/domain/entity"
)

func recipeFiles() entity.CodeFiles {
	return entity.CodeFiles{
		"src/App.tsx": `import { BrowserRouter, Routes, Route } from 'react-router-dom';
import Home from './pages/Home';
import Header from './components/Header';

export default function App() {
  return (
    <BrowserRouter>
      <Header />
      <Routes><Route path="/" element={<Home />} /></Routes>
    </BrowserRouter>
  );
}
`,
		"src/main.tsx": `import ReactDOM from 'react-dom/client';
import App from './App';
ReactDOM.createRoot(document.getElementById('root')!).render(<App />);
`,
		"src/pages/Home.tsx":        homePage,
		"src/components/Header.tsx": "export const Header = ({ title }: { title?: string }) => <header>{title}</header>;\nexport default Header;\n",
		"src/lib/api.ts":            "export async function fetchRecipes(q: string): Promise<string[]> { return []; }\n",
		"src/index.css":             "@tailwind base;\n@tailwind components;\n",
		"package.json":              `{"name": "ai-recipe-finder"}`,
	}
}

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer(config.PreviewConfig{ReactURL: "https://cdn.example.com/react.js"})

	doc, err := r.Render(context.Background(), recipeFiles(), "AI Recipe <Finder>")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "<title>AI Recipe &lt;Finder&gt; | Preview</title>")
	assert.Contains(t, doc, `<script src="https://cdn.example.com/react.js" crossorigin></script>`)
	assert.Contains(t, doc, defaultBabelURL)
	assert.Contains(t, doc, defaultTailwindURL)
	assert.Contains(t, doc, "@tailwind base;")
	assert.Contains(t, doc, `window.__mount("AI Recipe \u003cFinder\u003e");`)

	assert.NotContains(t, doc, `data-module="src/main.tsx"`)
	assert.NotContains(t, doc, "ai-recipe-finder")

	lib := strings.Index(doc, `data-module="src/lib/api.ts"`)
	component := strings.Index(doc, `data-module="src/components/Header.tsx"`)
	page := strings.Index(doc, `data-module="src/pages/Home.tsx"`)
	app := strings.Index(doc, `data-module="src/App.tsx"`)
	require.True(t, lib > 0 && component > 0 && page > 0 && app > 0)
	assert.True(t, lib < component && component < page && page < app, "libraries, components, pages, then the app")

	assert.Contains(t, doc, `const Routes = window.__stubs.router.Routes;`)
	assert.Contains(t, doc, `const Home = window.__lazyComponent("Home", "default");`)
	assert.Contains(t, doc, `const ChefHat = window.__stubs.icon("ChefHat");`)
	assert.Contains(t, doc, `const SearchIcon = window.__stubs.icon("Search");`)
	assert.Contains(t, doc, `const Icons = window.__stubs.icons;`)
	assert.Contains(t, doc, `const useState = window.React.useState;`)
	assert.Contains(t, doc, `const fetchRecipes = window.__lazyValue("api", "fetchRecipes");`)
	assert.Contains(t, doc, `window.__register("Home", "pages", {"default": typeof Home !== "undefined" ? Home : undefined, "PAGE_SIZE": `)
	assert.Contains(t, doc, `window.__register("Header", "components", {"default": `)
	assert.Contains(t, doc, `window.__register("App", "app", {"default": `)
	assert.Contains(t, doc, "window.onerror")
	assert.Contains(t, doc, "Download the code and run it locally")
}

func TestRenderer_MissingAppStillRenders(t *testing.T) {
	r := NewRenderer(config.PreviewConfig{})

	doc, err := r.Render(context.Background(), entity.CodeFiles{
		"src/components/Card.tsx": "export default function Card() { return <div /> }",
	}, "No Root")
	require.NoError(t, err)
	assert.Contains(t, doc, `window.__mount("No Root");`)
	assert.Contains(t, doc, "no root application component was generated")
	assert.NotContains(t, doc, `data-module="src/App.tsx"`)

	empty, err := r.Render(context.Background(), nil, "Empty")
	require.NoError(t, err)
	assert.Contains(t, empty, `window.__mount("Empty");`)
}

func TestRenderer_UnparseableFileFallsBack(t *testing.T) {
	r := NewRenderer(config.PreviewConfig{})

	doc, err := r.Render(context.Background(), entity.CodeFiles{
		"src/App.tsx": "import { useState } from 'react';\nexport default function App() {\n  const [n, setN] = useState<number>(0);\n  return <div>{n}\n}\n",
	}, "Broken")
	require.NoError(t, err)
	assert.Contains(t, doc, "const [n, setN] = useState(0);")
	assert.Contains(t, doc, `const useState = window.React.useState;`)
	assert.Contains(t, doc, `window.__register("App", "app", {"default": typeof App`)
}

func TestRenderer_EscapesScriptTerminators(t *testing.T) {
	r := NewRenderer(config.PreviewConfig{})

	doc, err := r.Render(context.Background(), entity.CodeFiles{
		"src/App.tsx": "export default function App() { return <div>{'</script><script>alert(1)</script>'}</div> }",
	}, "</script>")
	require.NoError(t, err)
	assert.NotContains(t, doc, "</script><script>alert(1)")
	assert.Contains(t, doc, `<\/script><script>alert(1)<\/script>`)
	assert.Contains(t, doc, "<title>&lt;/script&gt; | Preview</title>")
}

func TestBinding(t *testing.T) {
	tests := []struct {
		imp  Import
		want string
	}{
		{Import{Source: "react", Local: "React", Imported: "default"}, "window.React"},
		{Import{Source: "react-dom/client", Local: "createRoot", Imported: "createRoot"}, "window.ReactDOM.createRoot"},
		{Import{Source: "react-router-dom", Local: "useParams", Imported: "useParams"}, "window.__stubs.router.useParams"},
		{Import{Source: "axios", Local: "axios", Imported: "default"}, "window.__stubs.axios"},
		{Import{Source: "zustand", Local: "create", Imported: "create"}, "window.__stubs.zustand.create"},
		{Import{Source: "zustand", Local: "create", Imported: "default"}, "window.__stubs.zustand.create"},
		{Import{Source: "zustand/middleware", Local: "persist", Imported: "persist"}, "window.__stubs.zustand.middleware.persist"},
		{Import{Source: "@/components/ui/Button", Local: "Button", Imported: "Button"}, `window.__lazyComponent("Button", "Button")`},
		{Import{Source: "./store", Local: "useStore", Imported: "default"}, `window.__lazyValue("store", "default")`},
		{Import{Source: "framer-motion", Local: "AnimatePresence", Imported: "AnimatePresence"}, `window.__stubs.placeholder("AnimatePresence")`},
		{Import{Source: "clsx", Local: "clsx", Imported: "default"}, "window.__stubs.noop()"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, binding(tt.imp, nil), tt.imp.Source+" "+tt.imp.Local)
	}
}

func TestBinding_UsesModuleKind(t *testing.T) {
	kinds := map[string]fileKind{"AuthContext": kindLibrary, "Card": kindComponent}

	ctxImport := Import{Source: "../context/AuthContext", Local: "AuthContext", Imported: "AuthContext"}
	assert.Equal(t, `window.__lazyValue("AuthContext", "AuthContext")`, binding(ctxImport, kinds))

	cardImport := Import{Source: "./Card", Local: "card", Imported: "default"}
	assert.Equal(t, `window.__lazyComponent("Card", "default")`, binding(cardImport, kinds))
}

func TestRenderer_RegistersDependenciesFirst(t *testing.T) {
	files := entity.CodeFiles{
		"src/App.tsx": `import { AuthProvider } from './context/AuthContext';
import Home from './pages/Home';
export default function App() { return <AuthProvider><Home /></AuthProvider>; }
`,
		"src/context/AuthContext.tsx": `import { createContext } from 'react';
export const AuthContext = createContext<string | null>(null);
export function AuthProvider({ children }: { children: React.ReactNode }) {
  return <AuthContext.Provider value="guest">{children}</AuthContext.Provider>;
}
`,
		"src/hooks/useCart.ts": `import { useCartStore } from '../store/cartStore';
export function useCart() { return useCartStore(); }
`,
		"src/store/cartStore.ts": `import { create } from 'zustand';
export const useCartStore = create(() => ({ items: [] as string[] }));
`,
		"src/pages/Home.tsx": `import { useContext } from 'react';
import { AuthContext } from '../context/AuthContext';
import { useCart } from '../hooks/useCart';
export default function Home() {
  const user = useContext(AuthContext);
  const { items } = useCart();
  return <p>{user}: {items.length}</p>;
}
`,
	}

	doc, err := NewRenderer(config.PreviewConfig{}).Render(context.Background(), files, "Shop")
	require.NoError(t, err)

	storeRegistered := strings.Index(doc, `window.__register("cartStore", "lib"`)
	storeBound := strings.Index(doc, `const useCartStore = window.__lazyValue("cartStore", "useCartStore");`)
	require.True(t, storeRegistered > 0 && storeBound > 0)
	assert.Less(t, storeRegistered, storeBound, "store is registered before the hook that imports it")

	ctxRegistered := strings.Index(doc, `window.__register("AuthContext", "lib"`)
	ctxBound := strings.Index(doc, `const AuthContext = window.__lazyValue("AuthContext", "AuthContext");`)
	require.True(t, ctxRegistered > 0 && ctxBound > 0)
	assert.Less(t, ctxRegistered, ctxBound)
	assert.NotContains(t, doc, `window.__lazyComponent("AuthContext"`)

	hook := strings.Index(doc, `data-module="src/hooks/useCart.ts"`)
	page := strings.Index(doc, `data-module="src/pages/Home.tsx"`)
	app := strings.Index(doc, `data-module="src/App.tsx"`)
	assert.True(t, hook < page && page < app)
	assert.Contains(t, doc, `const AuthProvider = window.__lazyValue("AuthContext", "AuthProvider");`)
	assert.Contains(t, doc, `const Home = window.__lazyComponent("Home", "default");`)
}

func TestOrderByImports_BreaksCycles(t *testing.T) {
	a := &source{path: "src/lib/a.ts", name: "a", mod: &Module{Imports: []Import{{Source: "./b", Local: "b", Imported: "b"}}}}
	b := &source{path: "src/lib/b.ts", name: "b", mod: &Module{Imports: []Import{{Source: "./a", Local: "a", Imported: "a"}}}}
	c := &source{path: "src/lib/c.ts", name: "c", mod: &Module{Imports: []Import{{Source: "./a", Local: "a", Imported: "a"}}}}

	ordered := orderByImports([]*source{c, b, a})
	require.Len(t, ordered, 3)
	assert.Equal(t, []*source{a, b, c}, ordered)
}

func TestClassify(t *testing.T) {
	tests := map[string]struct {
		kind fileKind
		ok   bool
	}{
		"src/App.tsx":                {kindApp, true},
		"App.jsx":                    {kindApp, true},
		"src/main.tsx":               {0, false},
		"src/pages/Home.tsx":         {kindPage, true},
		"src/pages/admin/Users.tsx":  {kindPage, true},
		"src/components/ui/Card.tsx": {kindComponent, true},
		"src/hooks/useRecipes.ts":    {kindLibrary, true},
		"src/types.d.ts":             {0, false},
		"vite.config.ts":             {0, false},
		"README.md":                  {0, false},
	}
	for p, want := range tests {
		kind, ok := classify(p)
		assert.Equal(t, want.ok, ok, p)
		if want.ok {
			assert.Equal(t, want.kind, kind, p)
		}
	}
}
