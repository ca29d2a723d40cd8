package models

// DefaultTools サイドバーに表示する一括編集ツールの固定カタログ
var DefaultTools = []Tool{
	{ID: "price", Title: "Editar Preços", Description: "Aumente, reduza ou defina preços em massa.", Color: "#2563eb", Icon: "tag"},
	{ID: "promotional_price", Title: "Preço Promocional", Description: "Crie ou remova preços promocionais em massa.", Color: "#db2777", Icon: "percent"},
	{ID: "stock", Title: "Estoque", Description: "Ajuste a quantidade em estoque de vários produtos.", Color: "#16a34a", Icon: "package"},
	{ID: "tags", Title: "Tags", Description: "Adicione ou remova tags dos produtos.", Color: "#9333ea", Icon: "hash"},
	{ID: "categories", Title: "Categorias", Description: "Mova produtos entre categorias.", Color: "#ea580c", Icon: "folder"},
	{ID: "titles", Title: "Títulos", Description: "Padronize nomes e títulos de produtos.", Color: "#0891b2", Icon: "type"},
	{ID: "visibility", Title: "Visibilidade", Description: "Publique ou oculte produtos na loja.", Color: "#4b5563", Icon: "eye"},
	{ID: "dimensions", Title: "Peso e Dimensões", Description: "Atualize peso, altura, largura e profundidade.", Color: "#ca8a04", Icon: "box"},
}

// FindTool はIDでツールを探します。
func FindTool(tools []Tool, id string) (Tool, bool) {
	for _, t := range tools {
		if t.ID == id {
			return t, true
		}
	}
	return Tool{}, false
}
