package pipeline

import (
	"fmt"
	"time"

	"github.com/jwalitptl/consult-api/internal/model"
)

const dateLayout = "2006-01-02"

func extractionPrompt(consultation *model.Consultation, patient *model.Patient, transcript string) string {
	return fmt.Sprintf(`You are a medical AI assistant helping to extract structured information from a consultation transcript.

CONSULTATION DETAILS:
- Type: %s
- Date: %s
- Patient: %s

TRANSCRIPT:
%s

TASK:
Extract the following information from the consultation transcript and return it as a JSON object. Be thorough but concise. If information is not mentioned, use null.

Return ONLY valid JSON in this exact format:
{
  "presenting_complaint": "Brief description of why the patient attended",
  "history": "Relevant medical history, symptoms timeline, and patient narrative",
  "examination_findings": "Physical examination findings if mentioned",
  "diagnosis": "Working diagnosis or impression",
  "treatment_plan": "Medications, procedures, or treatments prescribed",
  "follow_up_plan": "Follow-up appointments, monitoring, or next steps",
  "billing_triggers": ["List of billable items like 'Initial consultation', 'ECG', 'Blood test' etc"],
  "letters_required": ["Types of letters needed like 'GP referral letter', 'Insurance report' etc"]
}

Be accurate and only extract information explicitly mentioned in the transcript.`,
		consultation.ConsultationType,
		consultation.ConsultationDate.Format(dateLayout),
		patient.Name,
		transcript,
	)
}

func soapNotePrompt(consultation *model.Consultation, patient *model.Patient, data *model.StructuredClinicalData) string {
	ageLine := ""
	if age := patient.Age(time.Now()); age >= 0 {
		ageLine = fmt.Sprintf("- Age: %d\n", age)
	}

	return fmt.Sprintf(`Generate a professional SOAP note (Subjective, Objective, Assessment, Plan) based on the following structured data from a medical consultation.

CONSULTATION DETAILS:
- Date: %s
- Type: %s
- Patient: %s
%s
EXTRACTED DATA:
- Presenting Complaint: %s
- History: %s
- Examination: %s
- Diagnosis: %s
- Treatment: %s
- Follow-up: %s

Generate a complete, professional SOAP note following standard medical documentation format. Be clear, concise, and clinically appropriate.`,
		consultation.ConsultationDate.Format(dateLayout),
		consultation.ConsultationType,
		patient.Name,
		ageLine,
		data.PresentingComplaint,
		data.History,
		data.ExaminationFindings,
		data.Diagnosis,
		data.TreatmentPlan,
		data.FollowUpPlan,
	)
}

func letterPrompt(docType model.DocumentType, consultation *model.Consultation, patient *model.Patient, data *model.StructuredClinicalData) string {
	date := consultation.ConsultationDate.Format(dateLayout)
	dob := ""
	if patient.DateOfBirth != nil {
		dob = fmt.Sprintf(" (DOB: %s)", patient.DateOfBirth.Format(dateLayout))
	}

	switch docType {
	case model.DocumentTypeGPLetter:
		return fmt.Sprintf(`Generate a professional letter to the patient's GP summarizing a recent consultation.

PATIENT: %s%s
CONSULTATION DATE: %s

CLINICAL SUMMARY:
- Presenting Complaint: %s
- Diagnosis: %s
- Treatment: %s
- Follow-up: %s

Generate a formal letter addressed "Dear Dr. [GP Name]," with proper formatting for UK medical correspondence.
Include all relevant clinical information and management plan.`,
			patient.Name, dob, date,
			data.PresentingComplaint, data.Diagnosis, data.TreatmentPlan, data.FollowUpPlan)

	case model.DocumentTypePatientLetter:
		return fmt.Sprintf(`Generate a patient-friendly letter summarizing the consultation and next steps.

PATIENT: %s
CONSULTATION DATE: %s

KEY POINTS:
- Why they attended: %s
- What we found: %s
- Treatment plan: %s
- Next steps: %s

Write in clear, non-medical language that the patient can understand. Be reassuring and informative.
Start with "Dear %s,"`,
			patient.Name, date,
			data.PresentingComplaint, data.Diagnosis, data.TreatmentPlan, data.FollowUpPlan,
			patient.Name)

	case model.DocumentTypeReferralLetter:
		return fmt.Sprintf(`Generate a specialist referral letter based on consultation findings.

PATIENT: %s%s
CONSULTATION DATE: %s

CLINICAL DETAILS:
- Presenting Complaint: %s
- History: %s
- Examination: %s
- Working Diagnosis: %s

Generate a formal referral letter addressed "Dear Colleague," with clear reason for referral and relevant clinical information.`,
			patient.Name, dob, date,
			data.PresentingComplaint, data.History, data.ExaminationFindings, data.Diagnosis)

	case model.DocumentTypeInsuranceLetter:
		return fmt.Sprintf(`Generate a medical report for insurance purposes documenting the consultation.

PATIENT: %s%s
CONSULTATION DATE: %s

CLINICAL FINDINGS:
- Presenting Complaint: %s
- Diagnosis: %s
- Treatment: %s

Generate a factual, objective medical report suitable for insurance documentation.
Use formal medical language and include all relevant clinical details.`,
			patient.Name, dob, date,
			data.PresentingComplaint, data.Diagnosis, data.TreatmentPlan)
	}
	return ""
}
