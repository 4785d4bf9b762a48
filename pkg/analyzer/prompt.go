package analyzer

const systemPrompt = "You are an auditor checking bank transfer receipts (dekont) submitted as proof of monthly internship payments."

// receiptAnalysisPrompt is shared by every provider so results stay comparable.
const receiptAnalysisPrompt = `Read every piece of text on this bank transfer receipt and assess whether it is a genuine, unaltered payment proof.

Return ONLY a JSON object with this exact shape:
{
  "extractedFields": {
    "senderName": "",
    "receiverName": "",
    "iban": "",
    "bankName": "",
    "amount": 0.00,
    "currency": "TRY",
    "transactionDate": "YYYY-MM-DD",
    "description": ""
  },
  "rawText": "all text you can read, line by line",
  "validation": {
    "isBankReceipt": true,
    "isLegible": true,
    "hasStamp": false,
    "issues": []
  },
  "securityFlags": [
    {"type": "EDITED_AMOUNT", "message": "short explanation", "severity": "low|medium|high"}
  ],
  "recommendation": "approve|reject|manual_review",
  "reliability": 0.0
}

Rules:
- reliability is a number between 0 and 1 expressing how confident you are that the receipt is genuine
- use null for any field you cannot read
- securityFlags is an empty array when nothing looks suspicious
- recommend "reject" only when the document is clearly not a bank receipt or is clearly manipulated
- do not wrap the JSON in markdown and do not add any text around it`
