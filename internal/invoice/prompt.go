package invoice

// invoicePrompt is sent with every image regardless of the model provider
const invoicePrompt = `You are analyzing an invoice document. Carefully read all text in the image and extract the following details in a strict JSON format:
{
  "invoice_number": "string",
  "vendor_name": "string",
  "invoice_date": "YYYY-MM-DD",
  "total_amount": 0.00,
  "tax_amount": 0.00,
  "items": [
    {
      "item_name": "string",
      "quantity": 0.0,
      "unit_price": 0.00,
      "total_price": 0.00
    }
  ]
}

Rules:
- Ensure all fields are filled
- The invoice date must be in YYYY-MM-DD format
- Amounts, quantities and prices must be numbers (not strings), without currency symbols
- List every line item in the order it appears on the invoice
- Use realistic values
- If a field is not found, use a placeholder or approximate value
- Respond with valid JSON only`
