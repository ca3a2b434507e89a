package extraction

// Default ADRES addresses.
const (
	DefaultPortalURL = "https://www.adres.gov.co/consulte-su-eps"
	DefaultFormURL   = "https://aplicaciones.adres.gov.co/bdua_internet/Pages/ConsultarAfiliadoWeb.aspx"
)

// FormField is a form control and whether the session can go on without it.
type FormField struct {
	Query    ElementQuery
	Required bool
}

// Layout gathers every query the session issues against the ADRES pages.
type Layout struct {
	Frame          ElementQuery
	DocumentType   FormField
	DocumentNumber FormField
	CaptchaImage   ElementQuery
	CaptchaAnswer  FormField
	Submit         FormField
	// Ready is the element whose presence means the form finished loading.
	Ready   Query
	Result  TransitionPredicate
	Content Query
}

// BDUALayout describes the consultation form embedded in the ADRES portal.
func BDUALayout() Layout {
	return Layout{
		Frame: ElementQuery{
			Name: "form iframe",
			Strategies: []Strategy{
				ByName{Name: "MSOPageViewerWebPart_WebPartWPQ3"},
				ByCSSContains{Tag: "iframe", Attr: "src", Fragment: "ConsultarAfiliadoWeb"},
				ByTagEnumeratedScored{Tag: "iframe", Score: AttrContainsScore("consultarafiliado", "src", "name", "id")},
			},
		},
		DocumentType: FormField{Query: ElementQuery{
			Name: "document type",
			Strategies: []Strategy{
				ByID{ID: "tipoDoc"},
				ByCSSContains{Tag: "select", Attr: "id", Fragment: "TipoDoc"},
				ByCSS{Selector: "select"},
			},
		}},
		DocumentNumber: FormField{Query: ElementQuery{
			Name: "document number",
			Strategies: []Strategy{
				ByID{ID: "txtNumDoc"},
				ByCSSContains{Tag: "input", Attr: "id", Fragment: "NumDoc"},
				ByCSS{Selector: "input[type='text']"},
			},
		}},
		CaptchaImage: ElementQuery{
			Name: "captcha image",
			Strategies: []Strategy{
				ByID{ID: "Capcha_CaptchaImageUP"},
				ByCSS{Selector: "img.imageClass"},
				ByTagEnumeratedScored{Tag: "img", Score: AttrContainsScore("captcha", "src", "alt", "id")},
			},
		},
		CaptchaAnswer: FormField{Query: ElementQuery{
			Name: "captcha answer",
			Strategies: []Strategy{
				ByID{ID: "Capcha_CaptchaTextBox"},
				ByCSSContains{Tag: "input", Attr: "id", Fragment: "CaptchaTextBox"},
				ByCSSContains{Tag: "input", Attr: "name", Fragment: "Captcha"},
			},
		}},
		Submit: FormField{Required: true, Query: ElementQuery{
			Name: "submit",
			Strategies: []Strategy{
				ByID{ID: "btnConsultar"},
				ByCSS{Selector: "input[type='submit']"},
				ByCSS{Selector: "button[type='submit']"},
			},
		}},
		Ready: Query{Kind: QueryID, Value: "txtNumDoc"},
		Result: TransitionPredicate{
			URLMarkers: []string{"RespuestaConsulta", "Respuesta"},
			Heading:    "RESULTADOS DE LA CONSULTA",
		},
		Content: Query{Kind: QueryTag, Value: "table"},
	}
}
