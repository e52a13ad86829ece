package testutil

import "fmt"

// InvoiceDocument builds a DTE-shaped invoice with the given generation code
// and number of line items. Line item i has precioUni 10*(i+1) and cantidad 1.
func InvoiceDocument(code string, items int) map[string]any {
	lines := make([]any, items)
	var gravada float64
	for i := range lines {
		price := float64(10 * (i + 1))
		gravada += price
		lines[i] = map[string]any{
			"numItem":      float64(i + 1),
			"tipoItem":     1.0,
			"descripcion":  fmt.Sprintf("Producto %d", i+1),
			"cantidad":     1.0,
			"precioUni":    price,
			"ventaGravada": price,
		}
	}
	iva := gravada * 0.13

	return map[string]any{
		"identificacion": map[string]any{
			"version":          3.0,
			"tipoDte":          "01",
			"codigoGeneracion": code,
			"numeroControl":    "DTE-01-00000000-" + code,
			"fecEmi":           "2024-03-15",
		},
		"emisor": map[string]any{
			"nit":    "06142010101010",
			"nombre": "Distribuidora El Sol",
		},
		"receptor": map[string]any{
			"nombre": "Cliente Final",
			"correo": nil,
		},
		"cuerpoDocumento": lines,
		"resumen": map[string]any{
			"totalGravada":       gravada,
			"totalIva":           iva,
			"totalPagar":         gravada + iva,
			"condicionOperacion": 1.0,
		},
	}
}
